package authority

import (
	"fmt"
	"slices"
)

type Role string

const (
	RolePrimeSovereign Role = "prime_sovereign"
	RoleTheHand        Role = "the_hand"
	RoleCrownedKing    Role = "crowned_king"
	RoleSteward        Role = "steward"
	RoleMarshal        Role = "marshal"
	RoleSentinel       Role = "sentinel"
	RoleVeilWatcher    Role = "veil_watcher"
)

// lower rank means more authority. Roles sharing a rank are incomparable.
var roleRank = map[Role]int{
	RolePrimeSovereign: 0,
	RoleTheHand:        1,
	RoleCrownedKing:    1,
	RoleSteward:        2,
	RoleMarshal:        3,
	RoleSentinel:       4,
	RoleVeilWatcher:    4,
}

var appointable = map[Role][]Role{
	RolePrimeSovereign: {RoleTheHand, RoleCrownedKing},
	RoleCrownedKing:    {RoleSteward},
	RoleSteward:        {RoleMarshal, RoleSentinel},
	RoleMarshal:        {RoleVeilWatcher},
}

var roleTitles = map[Role]string{
	RolePrimeSovereign: "Prime Sovereign",
	RoleTheHand:        "The Hand",
	RoleCrownedKing:    "Crowned King",
	RoleSteward:        "Steward",
	RoleMarshal:        "Marshal",
	RoleSentinel:       "Sentinel",
	RoleVeilWatcher:    "Veil Watcher",
}

// AllRoles lists roles from most to least authoritative.
var AllRoles = []Role{
	RolePrimeSovereign,
	RoleTheHand,
	RoleCrownedKing,
	RoleSteward,
	RoleMarshal,
	RoleSentinel,
	RoleVeilWatcher,
}

func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown moderator role: %q", raw)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the role's position in the hierarchy, or -1 for unknown roles.
func (r Role) Rank() int {
	rank, ok := roleRank[r]
	if !ok {
		return -1
	}
	return rank
}

func (r Role) Title() string {
	if t, ok := roleTitles[r]; ok {
		return t
	}
	return string(r)
}

// CanActOn reports whether actor strictly outranks target. Equal ranks never act on each other,
// which also makes the relation irreflexive and asymmetric.
func CanActOn(actor, target Role) bool {
	a, ok := roleRank[actor]
	if !ok {
		return false
	}
	t, ok := roleRank[target]
	if !ok {
		return false
	}
	return a < t
}

// GetAppointableRoles returns the roles that the given role may appoint. The returned slice is a
// copy and may be modified by the caller.
func GetAppointableRoles(r Role) []Role {
	return slices.Clone(appointable[r])
}

func CanAppoint(appointer, role Role) bool {
	return slices.Contains(appointable[appointer], role)
}

// TreeNode is one role in the appointment tree, with the roles it may appoint.
type TreeNode struct {
	Role     Role
	Children []TreeNode
}

// Tree returns the appointment tree rooted at prime_sovereign.
func Tree() TreeNode {
	return buildTree(RolePrimeSovereign)
}

func buildTree(r Role) TreeNode {
	node := TreeNode{Role: r}
	for _, child := range appointable[r] {
		node.Children = append(node.Children, buildTree(child))
	}
	return node
}
