package orchestrator

import (
	"context"
	"strings"

	"github.com/TannerBurns/termai/internal/ai"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/event"
)

// decide triages the user prompt into a conversational reply or a full
// agent run. Ambiguity resolves toward running: a misrouted question
// costs one cheap run, a misrouted task silently does nothing.
func (e *Engine) decide(ctx context.Context, userPrompt string) (route, error) {
	text, err := e.structured(ctx, decidePrompt(userPrompt), func(resp string) bool {
		var p routePayload
		return ai.Decode(resp, &p) == nil && strings.TrimSpace(p.Decision) != ""
	})
	if err != nil {
		return routeRun, err
	}
	r := parseRoute(text)
	e.log.Append("DECISION: " + string(r))
	e.logger.Info("request triaged", "decision", string(r))
	return r, nil
}

// respond answers the prompt directly, without the step loop. When the
// client can stream, fragments are published as they arrive so the UI
// renders the reply live; otherwise a single completion is used.
func (e *Engine) respond(ctx context.Context, userPrompt string) (string, error) {
	streamer, ok := e.client.(ai.Streamer)
	if !ok {
		return e.respondOneShot(ctx, userPrompt)
	}

	ch, err := streamer.StreamOneShot(ctx, respondSystemPrompt, userPrompt, ai.ModelConfig{})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			// A partial reply already reached the user; keep it and
			// note the break instead of failing the whole run.
			if sb.Len() > 0 {
				e.logger.Warn("reply stream interrupted", "error", chunk.Err)
				break
			}
			return "", chunk.Err
		}
		if chunk.Text == "" {
			continue
		}
		sb.WriteString(chunk.Text)
		e.publish(event.NewReplyChunkEvent(e.sess.ID(), chunk.Text))
	}

	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", apperrors.ErrEmptyResponse
	}
	e.log.Append("REPLY: " + reply)
	return reply, nil
}

func (e *Engine) respondOneShot(ctx context.Context, userPrompt string) (string, error) {
	completion, err := e.client.CompleteOneShot(ctx, respondSystemPrompt, userPrompt, ai.ModelConfig{})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(completion.Text)
	if reply == "" {
		return "", apperrors.ErrEmptyResponse
	}
	e.publish(event.NewReplyChunkEvent(e.sess.ID(), reply))
	e.log.Append("REPLY: " + reply)
	return reply, nil
}
