package cost

import (
	"context"

	"github.com/rickchristie/gentflow"
)

// RecordingChat is a gentflow.Chatter that records the cost of every successful call
// against one session. Calls are not attributed to a run.
type RecordingChat struct {
	next      gentflow.Chatter
	tracker   *Tracker
	sessionID string
}

// WrapChat returns next wrapped so each returned cost lands in tracker under sessionID.
func WrapChat(next gentflow.Chatter, tracker *Tracker, sessionID string) *RecordingChat {
	return &RecordingChat{next: next, tracker: tracker, sessionID: sessionID}
}

// Chat implements gentflow.Chatter.
func (c *RecordingChat) Chat(ctx context.Context, req gentflow.ChatRequest) (*gentflow.ChatResult, error) {
	res, err := c.next.Chat(ctx, req)
	if err != nil {
		return res, err
	}
	if res != nil {
		c.tracker.Record(c.sessionID, "", res.Cost)
	}
	return res, nil
}

// Compile-time check that RecordingChat implements gentflow.Chatter.
var _ gentflow.Chatter = (*RecordingChat)(nil)
