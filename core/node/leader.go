package node

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/p2p"
	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

// Backend produces a completion for a prompt. The ollama package provides
// the production implementation.
type Backend interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// Leader answers inbound inference requests with the local backend. A
// backend failure still produces a response frame, so the asking peer
// learns why its request failed instead of timing out.
type Leader struct {
	log          *zap.Logger
	backend      Backend
	defaultModel string
}

func NewLeader(log *zap.Logger, backend Backend, defaultModel string) *Leader {
	return &Leader{log: log, backend: backend, defaultModel: defaultModel}
}

// Serve handles one request end to end. It blocks for the duration of the
// backend call and is safe to run concurrently for separate requests.
func (l *Leader) Serve(ctx context.Context, from string, req protocol.InferenceRequest, reply p2p.ResponseSender) {
	model := req.ModelOr(l.defaultModel)
	l.log.Info("Received inference request",
		zap.String("peer", from),
		zap.String("model", model),
		zap.String("prompt", req.Prompt))

	var res protocol.InferenceResponse
	text, err := l.backend.Generate(ctx, req.Prompt, model)
	if err != nil {
		l.log.Warn("backend generate failed", zap.Error(err))
		res = protocol.NewFailure(err.Error())
	} else {
		res = protocol.NewSuccess(text)
	}

	if err := reply.Send(res); err != nil {
		l.log.Warn("failed to send response", zap.String("peer", from), zap.Error(err))
		return
	}
	l.log.Info("Sent response", zap.String("peer", from), zap.Bool("success", res.Success))
}
