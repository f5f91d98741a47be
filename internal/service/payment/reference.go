package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceDomain = "agenda"

// FormatReference mints the external reference echoed back by the gateway:
// agenda_<professional id>_<unix millis>.
func FormatReference(professionalID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", referenceDomain, professionalID, at.UnixMilli())
}

// ParseReference recovers the professional id and mint time. Anything not
// produced by FormatReference is rejected.
func ParseReference(ref string) (uuid.UUID, time.Time, error) {
	parts := strings.Split(ref, "_")
	if len(parts) != 3 || parts[0] != referenceDomain {
		return uuid.Nil, time.Time{}, fmt.Errorf("malformed external reference %q", ref)
	}
	professionalID, err := uuid.Parse(parts[1])
	if err != nil || professionalID == uuid.Nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid professional id in reference %q", ref)
	}
	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || millis <= 0 {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid timestamp in reference %q", ref)
	}
	return professionalID, time.UnixMilli(millis).UTC(), nil
}
