package actions

import (
	"fmt"
	"sort"
	"strings"
)

// Intent is an entry of the catalog presented to the language model.
// The model answers with an intent id; the orchestrator executes the
// descriptor behind it.
type Intent struct {
	ID    int    `json:"id"`
	Group Group  `json:"group"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

// Descriptor returns the action request for this intent.
func (i Intent) Descriptor() Descriptor {
	return ByName(i.Group, i.Name)
}

// Catalog maps intent ids to actions. IDs are stable identifiers used in
// prompts and are unrelated to table ids.
type Catalog map[int]Intent

// DefaultCatalog is the intent catalog used for classification and idle
// suggestions. Damp, zero torque and Lie2StandUp are deliberately absent:
// they are never triggered from conversation.
var DefaultCatalog = Catalog{
	1:  {ID: 1, Group: GroupArm, Name: "shake hand", Desc: "握手"},
	2:  {ID: 2, Group: GroupArm, Name: "high five", Desc: "击掌"},
	3:  {ID: 3, Group: GroupArm, Name: "hug", Desc: "拥抱"},
	4:  {ID: 4, Group: GroupArm, Name: "high wave", Desc: "挥手/打招呼/招手"},
	5:  {ID: 5, Group: GroupArm, Name: "clap", Desc: "鼓掌/拍手"},
	6:  {ID: 6, Group: GroupArm, Name: "heart", Desc: "比心"},
	7:  {ID: 7, Group: GroupArm, Name: "hands up", Desc: "举手/举起手"},
	8:  {ID: 8, Group: GroupArm, Name: "release arm", Desc: "放下手/松手/放松手臂"},
	9:  {ID: 9, Group: GroupLoco, Name: "Squat2StandUp", Desc: "站起来/起立"},
	10: {ID: 10, Group: GroupLoco, Name: "StandUp2Squat", Desc: "蹲下/下蹲"},
	11: {ID: 11, Group: GroupLoco, Name: "low stand", Desc: "低站姿/低姿态"},
	12: {ID: 12, Group: GroupLoco, Name: "high stand", Desc: "高站姿/高姿态"},
	13: {ID: 13, Group: GroupLoco, Name: "move forward", Desc: "前进/往前走/向前"},
	14: {ID: 14, Group: GroupLoco, Name: "move lateral", Desc: "横移/左移/右移/侧移"},
	15: {ID: 15, Group: GroupLoco, Name: "move rotate", Desc: "转圈/旋转/原地转"},
	18: {ID: 18, Group: GroupLoco, Name: "wave hand1", Desc: "摆手一/动作一"},
	19: {ID: 19, Group: GroupLoco, Name: "wave hand2", Desc: "摆手二/动作二"},
}

// Get returns the intent for id. Negative ids mean "no action".
func (c Catalog) Get(id int) (Intent, bool) {
	if id < 0 {
		return Intent{}, false
	}
	in, ok := c[id]
	return in, ok
}

// IDs returns the catalog ids in ascending order.
func (c Catalog) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PromptText renders the catalog as the action list given to the model.
func (c Catalog) PromptText() string {
	var b strings.Builder
	b.WriteString("【可用动作列表】\n")
	for _, id := range c.IDs() {
		fmt.Fprintf(&b, "- ID %d: %s\n", id, c[id].Desc)
	}
	return b.String()
}

// Validate checks that every intent resolves against the action tables.
func (c Catalog) Validate() error {
	for _, id := range c.IDs() {
		if _, err := Resolve(c[id].Descriptor()); err != nil {
			return fmt.Errorf("intent %d: %w", id, err)
		}
	}
	return nil
}
