package sites

import (
	"context"
	"fmt"
)

// Appointment is one availability finding at a visa center.
type Appointment struct {
	Location string
	Detail   string
}

func (a Appointment) String() string {
	return fmt.Sprintf("%s: %s", a.Location, a.Detail)
}

// Checker probes one visa site for open appointments. Implementations go
// through a shared proxied client; they never dial directly on their own.
type Checker interface {
	Name() string
	Check(ctx context.Context) ([]Appointment, error)
}

// Location is one consulate or application center endpoint.
type Location struct {
	URL  string
	Name string
}
