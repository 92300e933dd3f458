package digest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/matchbook/notifier/internal/services"
)

// Notifier creates a notification and its email side effect.
type Notifier interface {
	CreateNotification(ctx context.Context, input services.CreateNotificationInput) (*services.NotificationDTO, error)
}

// Delivery is one notification to attempt. A Delivery with PrepareErr set is reported as
// failed without calling the notifier.
type Delivery struct {
	Group      *Group
	ActionType string
	Input      services.CreateNotificationInput
	PrepareErr error
}

// Outcome is the settled result of one Delivery.
type Outcome struct {
	Group          *Group
	ActionType     string
	NotificationID string
	Err            error
}

// Dispatch attempts every delivery concurrently and waits for all of them. Each call
// records its own result; one failure never cancels or skips the others. limit bounds the
// number of in-flight calls; zero or less starts one goroutine per delivery.
func Dispatch(ctx context.Context, notifier Notifier, deliveries []Delivery, limit int) []Outcome {
	outcomes := make([]Outcome, len(deliveries))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range deliveries {
		d := deliveries[i]
		outcomes[i] = Outcome{Group: d.Group, ActionType: d.ActionType}
		if d.PrepareErr != nil {
			outcomes[i].Err = d.PrepareErr
			continue
		}

		g.Go(func() error {
			id, err := deliver(ctx, notifier, d.Input)
			outcomes[i].NotificationID = id
			outcomes[i].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func deliver(ctx context.Context, notifier Notifier, input services.CreateNotificationInput) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	dto, err := notifier.CreateNotification(ctx, input)
	if err != nil {
		return "", err
	}
	if dto != nil {
		id = dto.ID
	}
	return id, nil
}
