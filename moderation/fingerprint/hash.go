package fingerprint

import (
	"crypto/hmac"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"
)

// UserHash is the pseudonymous identifier the engine keys sanctions and audit rows on.
type UserHash string

// DeviceHash identifies a device descriptor without retaining its fields.
type DeviceHash string

const (
	userHashPrefix   = "u"
	deviceHashPrefix = "d"

	// domain separation for device digests
	deviceDomain = "warden/device/v1"
)

// DeviceFingerprint is the structured device descriptor supplied by the client session.
type DeviceFingerprint struct {
	UserAgent    string `json:"userAgent"`
	Locale       string `json:"locale"`
	Timezone     string `json:"timezone"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	ColorDepth   int    `json:"colorDepth"`
	Platform     string `json:"platform"`
}

// HashIdentity computes HMAC-SHA-256(salt, material). The same material and salt always yield
// the same hash.
func HashIdentity(material, salt string) UserHash {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(material))
	return UserHash(userHashPrefix + base58.Encode(mac.Sum(nil)))
}

// HashDevice digests a canonical encoding of the descriptor. Fields are length-prefixed so
// that no two distinct descriptors share an encoding.
func HashDevice(fp DeviceFingerprint) DeviceHash {
	h := sha256.New()
	h.Write([]byte(deviceDomain))
	writeDeviceFields(h, fp)
	return DeviceHash(deviceHashPrefix + base58.Encode(h.Sum(nil)))
}

func writeDeviceFields(w io.Writer, fp DeviceFingerprint) {
	for _, field := range []string{
		fp.UserAgent,
		fp.Locale,
		fp.Timezone,
		strconv.Itoa(fp.ScreenWidth),
		strconv.Itoa(fp.ScreenHeight),
		strconv.Itoa(fp.ColorDepth),
		fp.Platform,
	} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		w.Write(n[:])
		w.Write([]byte(field))
	}
}

// Hasher binds the identity and device transforms to keys derived from a single server-side
// pepper, so operators only have to manage one secret.
type Hasher struct {
	identityKey []byte
	deviceKey   []byte
}

func NewHasher(pepper []byte) (*Hasher, error) {
	identityKey, err := deriveKey(pepper, "warden/identity/v1")
	if err != nil {
		return nil, err
	}
	deviceKey, err := deriveKey(pepper, "warden/device-key/v1")
	if err != nil {
		return nil, err
	}
	return &Hasher{identityKey: identityKey, deviceKey: deviceKey}, nil
}

func deriveKey(pepper []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, pepper, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// User hashes identity material (account id, campus email, ...) under the derived identity key.
func (h *Hasher) User(material string) UserHash {
	return HashIdentity(material, string(h.identityKey))
}

// Device is like HashDevice, but keyed, so device hashes from different deployments are
// unlinkable.
func (h *Hasher) Device(fp DeviceFingerprint) DeviceHash {
	mac := hmac.New(sha256.New, h.deviceKey)
	mac.Write([]byte(deviceDomain))
	writeDeviceFields(mac, fp)
	return DeviceHash(deviceHashPrefix + base58.Encode(mac.Sum(nil)))
}
