// Package actions holds the robot's static action tables and resolves
// symbolic action requests (group + name or id) against them.
//
// Each group has a unique bidirectional id<->name mapping. Resolution is a
// pure function: the same descriptor always resolves the same way.
package actions

// Group identifies an action table.
type Group string

const (
	// GroupArm is the upper-body gesture table.
	GroupArm Group = "arm"

	// GroupLoco is the locomotion / posture table.
	GroupLoco Group = "loco"
)

// Entry is one row of an action table.
type Entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Arm actions understood by the arm action client.
var ArmTable = []Entry{
	{ID: 0, Name: "release arm"},
	{ID: 1, Name: "shake hand"},
	{ID: 2, Name: "high five"},
	{ID: 3, Name: "hug"},
	{ID: 4, Name: "high wave"},
	{ID: 5, Name: "clap"},
	{ID: 6, Name: "face wave"},
	{ID: 7, Name: "left kiss"},
	{ID: 8, Name: "heart"},
	{ID: 9, Name: "right heart"},
	{ID: 10, Name: "hands up"},
	{ID: 11, Name: "x-ray"},
	{ID: 12, Name: "right hand up"},
	{ID: 13, Name: "reject"},
	{ID: 14, Name: "right kiss"},
	{ID: 15, Name: "two-hand kiss"},
}

// Locomotion actions. IDs are meaningful: the dispatcher maps each id to a
// fixed routine.
var LocoTable = []Entry{
	{ID: LocoDamp, Name: "damp"},
	{ID: LocoSquatToStand, Name: "Squat2StandUp"},
	{ID: LocoStandToSquat, Name: "StandUp2Squat"},
	{ID: LocoMoveForward, Name: "move forward"},
	{ID: LocoMoveLateral, Name: "move lateral"},
	{ID: LocoMoveRotate, Name: "move rotate"},
	{ID: LocoLowStand, Name: "low stand"},
	{ID: LocoHighStand, Name: "high stand"},
	{ID: LocoZeroTorque, Name: "zero torque"},
	{ID: LocoWaveHand, Name: "wave hand1"},
	{ID: LocoWaveHandTurn, Name: "wave hand2"},
	{ID: LocoShakeHand, Name: "shake hand"},
	{ID: LocoLieToStand, Name: "Lie2StandUp"},
}

// Locomotion action ids.
const (
	LocoDamp = iota
	LocoSquatToStand
	LocoStandToSquat
	LocoMoveForward
	LocoMoveLateral
	LocoMoveRotate
	LocoLowStand
	LocoHighStand
	LocoZeroTorque
	LocoWaveHand
	LocoWaveHandTurn
	LocoShakeHand
	LocoLieToStand
)

// ArmRelease is the arm action used as the automatic follow-up.
const ArmRelease = "release arm"

// ArmReleaseAfter lists arm ids that are followed by ArmRelease after a delay.
var ArmReleaseAfter = map[int]bool{1: true, 2: true, 3: true, 8: true, 9: true, 10: true, 11: true, 12: true, 13: true}

// table is a bidirectional index over one group's entries.
type table struct {
	entries []Entry
	byID    map[int]string
	byName  map[string]int
}

func newTable(entries []Entry) *table {
	t := &table{
		entries: entries,
		byID:    make(map[int]string, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.byID[e.ID]; dup {
			panic("actions: duplicate id in table")
		}
		if _, dup := t.byName[e.Name]; dup {
			panic("actions: duplicate name in table: " + e.Name)
		}
		t.byID[e.ID] = e.Name
		t.byName[e.Name] = e.ID
	}
	return t
}

var tables = map[Group]*table{
	GroupArm:  newTable(ArmTable),
	GroupLoco: newTable(LocoTable),
}

// List returns a copy of the entries of a group, or nil for an unknown group.
func List(g Group) []Entry {
	t, ok := tables[g]
	if !ok {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the name for an id within a group.
func Lookup(g Group, id int) (string, bool) {
	t, ok := tables[g]
	if !ok {
		return "", false
	}
	name, ok := t.byID[id]
	return name, ok
}
