package fingerprint

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitSignatures(t *testing.T) {
	assert := assert.New(t)

	before := time.Now().UTC().Add(-time.Second)
	sig := InitBehaviorSignature()
	assert.Empty(sig.ActiveHours)
	assert.Empty(sig.PreferredKinds)
	assert.Empty(sig.Interactions)
	assert.True(sig.FirstSeen.After(before))

	tp := InitTimePattern()
	assert.True(tp.FirstSeen.After(before))
	assert.Equal(tp.FirstSeen, tp.LastSeen)
	assert.Equal(0, tp.TZOffsetMinutes)
}

func TestUpdateBehaviorSignatureHours(t *testing.T) {
	assert := assert.New(t)

	var sig BehaviorSignature
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sig = UpdateBehaviorSignature(sig, Activity{Kind: "post", At: base})
	sig = UpdateBehaviorSignature(sig, Activity{Kind: "like", At: base.Add(time.Hour)})
	sig = UpdateBehaviorSignature(sig, Activity{Kind: "like", At: base.Add(10 * time.Minute)})

	// hour 9 seen again: deduplicated and moved to the most recent end
	assert.Equal([]int{10, 9}, sig.ActiveHours)
	assert.Equal([]string{"post", "like", "like"}, sig.Interactions)
	assert.Equal(base, sig.FirstSeen)
	assert.Equal(base.Add(time.Hour), sig.LastSeen)

	for i := 0; i < 48; i++ {
		sig = UpdateBehaviorSignature(sig, Activity{Kind: "like", At: base.Add(time.Duration(i) * time.Hour)})
	}
	assert.Len(sig.ActiveHours, MaxActiveHours)
}

func TestUpdateBehaviorSignatureKinds(t *testing.T) {
	assert := assert.New(t)

	sig := InitBehaviorSignature()
	for _, k := range []string{"text", "image", "poll", "video", "link", "text", "audio"} {
		sig = UpdateBehaviorSignature(sig, Activity{Kind: "post", ContentKind: k})
	}
	assert.Equal([]string{"poll", "video", "link", "text", "audio"}, sig.PreferredKinds)

	sig = UpdateBehaviorSignature(sig, Activity{Kind: "like"})
	assert.Len(sig.PreferredKinds, MaxPreferredKinds)
}

func TestUpdateBehaviorSignatureInteractionsFIFO(t *testing.T) {
	assert := assert.New(t)

	sig := InitBehaviorSignature()
	for i := 0; i < 60; i++ {
		sig = UpdateBehaviorSignature(sig, Activity{Kind: fmt.Sprintf("evt-%d", i)})
	}
	assert.Len(sig.Interactions, MaxInteractions)
	assert.Equal("evt-10", sig.Interactions[0])
	assert.Equal("evt-59", sig.Interactions[MaxInteractions-1])
}

func TestUpdateBehaviorSignatureDoesNotMutateInput(t *testing.T) {
	assert := assert.New(t)

	sig := InitBehaviorSignature()
	sig = UpdateBehaviorSignature(sig, Activity{Kind: "post", ContentKind: "text"})
	snapshot := append([]string{}, sig.Interactions...)

	_ = UpdateBehaviorSignature(sig, Activity{Kind: "comment", ContentKind: "image"})
	assert.Equal(snapshot, sig.Interactions)
	assert.Equal([]string{"text"}, sig.PreferredKinds)
}

func TestTouchTimePattern(t *testing.T) {
	assert := assert.New(t)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tp := TouchTimePattern(TimePattern{}, t0, -300)
	assert.Equal(t0, tp.FirstSeen)
	assert.Equal(t0, tp.LastSeen)
	assert.Equal(-300, tp.TZOffsetMinutes)

	tp = TouchTimePattern(tp, t0.Add(2*time.Hour), 60)
	assert.Equal(t0, tp.FirstSeen)
	assert.Equal(t0.Add(2*time.Hour), tp.LastSeen)
	assert.Equal(60, tp.TZOffsetMinutes)
}
