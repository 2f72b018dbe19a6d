package brain

import (
	"context"
	"strings"

	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/llm"
)

// Suggestion is a self-initiated line and an optional accompanying action.
type Suggestion struct {
	Text   string
	Intent *actions.Intent
}

// Empty reports whether there is nothing to say or do.
func (s Suggestion) Empty() bool {
	return s.Text == "" && s.Intent == nil
}

// suggestionSep separates the line from the action id in idle answers.
const suggestionSep = "|||"

func idlePrompt(c actions.Catalog) string {
	return "现在的场景是：用户暂时没有说话，场面陷入了沉默。\n" +
		"请读取上方的对话历史，作为机器人，请主动打破沉默。\n" +
		"你可以：\n" +
		"1. 针对刚刚的话题继续聊些不一样的东西。\n" +
		"2. 发起一个全新的更有趣话题。\n" +
		"3. 必须配合一个符合当前语境的动作（如伸懒腰、转圈、摊手等）。\n" +
		"----------------\n" +
		c.PromptText() + "\n" +
		"----------------\n" +
		"【强制返回格式】：话语内容 ||| 动作ID\n" +
		"示例1: 刚才聊太久了，我得活动活动筋骨。 ||| 9\n" +
		"示例2: 你还在吗？我都快睡着了。 ||| 4\n" +
		"如果不想做动作，ID填 -1。"
}

// Idle proposes something to break a silence. With no conversation yet
// there is nothing to build on and the suggestion is empty. A non-empty
// line is added to the history as the robot's own turn.
func (t *Thinker) Idle(ctx context.Context) Suggestion {
	history := t.History()
	if len(history) == 0 {
		return Suggestion{}
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.System(t.idle))
	msgs = append(msgs, history...)

	out, err := t.model.Complete(ctx, msgs, IdleTemperature)
	if err != nil {
		t.logger.Warn("idle suggestion failed", "error", err)
		return Suggestion{}
	}
	s, ok := ParseSuggestion(out, t.cfg.Catalog)
	if !ok {
		t.logger.Debug("malformed idle suggestion", "output", out)
		return Suggestion{}
	}
	if s.Text != "" {
		t.remember(llm.Assistant(s.Text))
	}
	t.logger.Info("idle thought", "text", s.Text, "has_action", s.Intent != nil)
	return s
}

// ParseSuggestion parses "text ||| id". An id of -1, an unknown id or a
// non-numeric id yields no intent; a missing separator is malformed.
func ParseSuggestion(out string, catalog actions.Catalog) (Suggestion, bool) {
	text, rest, found := strings.Cut(out, suggestionSep)
	if !found {
		return Suggestion{}, false
	}
	s := Suggestion{Text: strings.TrimSpace(text)}
	// Only the first field after the separator counts.
	idField, _, _ := strings.Cut(rest, suggestionSep)
	if id, ok := parseID(idField); ok {
		if in, ok := catalog.Get(id); ok {
			s.Intent = &in
		}
	}
	return s, true
}
