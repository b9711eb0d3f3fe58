package mcp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/google/uuid"
)

func parseUUID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, fmt.Errorf("%s is required", name)
	}
	return cli.ParseID(name, value)
}

// userOr returns the parsed id, or the current user when value is empty.
func userOr(app *cli.App, name, value string) (uuid.UUID, error) {
	if value != "" {
		return cli.ParseID(name, value)
	}
	if app.CurrentUserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s is required: pass it or set NESTLY_USER_ID", name)
	}
	return app.CurrentUserID, nil
}

func parseRange(app *cli.App, start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, errors.New("start and end are required")
	}
	s, err := cli.ParseInstant(start, app.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := cli.ParseInstant(end, app.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// toolError turns a domain failure into a message an agent can act on.
func toolError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(cli.Explain(err))
}

// interruptedError reports a series that stopped part way, naming what was
// committed before the failure.
func interruptedError(err error, committed []uuid.UUID) error {
	ids := make([]string, len(committed))
	for i, id := range committed {
		ids[i] = id.String()
	}
	return fmt.Errorf("%s (committed: %s)", cli.Explain(err), strings.Join(ids, ", "))
}
