package controller

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
	nodex "github.com/merryway/baristabot/agent/nodes"
)

var (
	ErrEmptyLog      = nodex.ErrEmptyLog
	ErrNoUserMessage = nodex.ErrNoUserMessage
)

const recoveryMessage = "Sorry, something went wrong on our end. Could you say that again?"

// Controller runs one dialogue turn: gate, route, dispatch. It holds no
// conversation state of its own; callers pass the full message log and
// append the returned reply to it.
type Controller struct {
	models contractx.Registry

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func New(models contractx.Registry) (*Controller, error) {
	if models == nil {
		return nil, errors.New("model registry is required")
	}

	c := &Controller{models: models}

	graphRunner, err := c.compileRespondGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = graphRunner

	return c, nil
}

// Respond produces the assistant message for the latest user turn in
// messages. Model and schema failures degrade to a polite retry prompt
// so one bad completion never takes the conversation down; malformed
// input logs are still reported as errors.
func (c *Controller) Respond(ctx context.Context, messages []contractx.Message) (contractx.Message, error) {
	out, err := c.graphRunner.Invoke(ctx, nodex.GraphInput{Messages: messages})
	if err != nil {
		if recoverable(err) {
			log.Warn().Err(err).Msg("turn degraded to recovery reply")
			return contractx.AssistantMessage(recoveryMessage, &contractx.Checkpoint{
				Reason: err.Error(),
			}), nil
		}
		return contractx.Message{}, err
	}
	return out.Reply, nil
}

func recoverable(err error) bool {
	return errors.Is(err, contractx.ErrModelInvoke) ||
		errors.Is(err, contractx.ErrSchemaViolation) ||
		errors.Is(err, contractx.ErrRepairExhausted)
}
