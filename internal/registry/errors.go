package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// DeliveryError records a failed delivery to one recipient. It never
// propagates past Broadcast; callers see it in the Report.
type DeliveryError struct {
	SessionID uuid.UUID
	Kind      Kind
	Lineage   string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s (%s) after %d attempt(s): %v", e.Lineage, e.SessionID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
