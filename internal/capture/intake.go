package capture

import (
	"context"
	"strings"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

// Intake turns free text into inbox tasks. It does not judge the text: low
// confidence is surfaced to the reviewer, not enforced.
type Intake struct {
	extractor Extractor
	engine    *workflow.Engine
}

func NewIntake(extractor Extractor, engine *workflow.Engine) *Intake {
	return &Intake{
		extractor: extractor,
		engine:    engine,
	}
}

func (i *Intake) Capture(ctx context.Context, actor auth.Identity, text string) (*task.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "text must not be empty", nil)
	}
	ext, err := i.extractor.ExtractTask(ctx, text)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "extraction failed", err)
	}
	if ext.Confidence < 0 || ext.Confidence > 1 {
		return nil, cerr.Errorf(cerr.InvalidArgument, "extractor confidence %v out of range [0,1]", ext.Confidence)
	}
	desc := strings.TrimSpace(ext.Description)
	if desc == "" {
		desc = strings.TrimSpace(text)
	}
	return i.engine.CreateCaptured(ctx, actor, desc, ext.Confidence)
}
