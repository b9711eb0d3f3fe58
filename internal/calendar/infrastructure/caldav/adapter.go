package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	calendarApp "github.com/felixgeelhaar/nestly/internal/calendar/application"
	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

// Custom properties on events written by nestly.
const (
	PropXNestly         = "X-NESTLY"
	PropXNestlyKind     = "X-NESTLY-KIND"
	PropXNestlyProvider = "X-NESTLY-PROVIDER"
)

// ProviderPlaceholder is replaced by the provider id in a calendar path.
const ProviderPlaceholder = "{provider}"

// ErrCalendarUnavailable is returned while the breaker is open.
var ErrCalendarUnavailable = errors.New("calendar service unavailable")

// Config configures the CalDAV adapter.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// BearerToken takes precedence over basic auth when set.
	BearerToken string
	// CalendarPath is the collection events are written to. It may contain
	// {provider} for one collection per provider. Empty means the first
	// calendar of the authenticated principal.
	CalendarPath string
	Timeout      time.Duration

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Adapter implements application.CalendarSyncAdapter on a CalDAV server
// (Apple Calendar, Fastmail, Nextcloud ...). Every call goes through one
// circuit breaker so an outage fails fast.
type Adapter struct {
	config      Config
	client      *caldav.Client
	breaker     *gobreaker.CircuitBreaker[any]
	logger      *slog.Logger
	now         func() time.Time
	mu          sync.Mutex
	defaultPath string
}

var _ calendarApp.CalendarSyncAdapter = (*Adapter)(nil)

// NewAdapter creates a CalDAV adapter.
func NewAdapter(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("caldav base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	var httpClient webdav.HTTPClient
	if cfg.BearerToken != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"})
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: source, Base: http.DefaultTransport},
		}
	} else {
		httpClient = webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: cfg.Timeout}, cfg.Username, cfg.Password)
	}

	client, err := caldav.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	a := &Adapter{config: cfg, client: client, logger: logger, now: time.Now}
	a.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "caldav",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return a, nil
}

// PushEvent writes entry as <collection>/<uid>.ics and returns that path.
func (a *Adapter) PushEvent(ctx context.Context, entry domain.Entry) (ref string, err error) {
	ctx, span := observability.StartSpan(ctx, "caldav.push",
		attribute.String("uid", entry.UID.String()),
		attribute.String("kind", string(entry.Kind)),
	)
	defer func() { observability.EndSpan(span, err) }()

	result, err := a.execute(func() (any, error) {
		path := entry.Ref
		if path == "" {
			collection, err := a.collection(ctx, entry)
			if err != nil {
				return nil, err
			}
			path = eventPath(collection, entry)
		}
		obj, err := a.client.PutCalendarObject(ctx, path, toICalendar(entry, a.now()))
		if err != nil {
			return nil, fmt.Errorf("put %s: %w", path, err)
		}
		if obj != nil && obj.Path != "" {
			return obj.Path, nil
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// DeleteEvent removes the entry. A missing event counts as deleted.
func (a *Adapter) DeleteEvent(ctx context.Context, entry domain.Entry) (err error) {
	ctx, span := observability.StartSpan(ctx, "caldav.delete", attribute.String("uid", entry.UID.String()))
	defer func() { observability.EndSpan(span, err) }()

	_, err = a.execute(func() (any, error) {
		path := entry.Ref
		if path == "" {
			collection, err := a.collection(ctx, entry)
			if err != nil {
				return nil, err
			}
			path = eventPath(collection, entry)
		}
		if err := a.client.RemoveAll(ctx, path); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("delete %s: %w", path, err)
		}
		return nil, nil
	})
	return err
}

func (a *Adapter) execute(fn func() (any, error)) (any, error) {
	result, err := a.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	return result, err
}

func (a *Adapter) collection(ctx context.Context, entry domain.Entry) (string, error) {
	if a.config.CalendarPath != "" {
		return strings.ReplaceAll(a.config.CalendarPath, ProviderPlaceholder, entry.ProviderID.String()), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.defaultPath != "" {
		return a.defaultPath, nil
	}

	principal, err := a.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := a.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := a.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", errors.New("no calendars found")
	}
	a.defaultPath = cals[0].Path
	return a.defaultPath, nil
}

func eventPath(collection string, entry domain.Entry) string {
	if !strings.HasSuffix(collection, "/") {
		collection += "/"
	}
	return collection + entry.UID.String() + ".ics"
}

// go-webdav reports the HTTP status only in the error text.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}

// toICalendar converts an entry to a single-event calendar.
func toICalendar(entry domain.Entry, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Nestly//Scheduling//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, entry.UID.String())
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, entry.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, entry.End.UTC())
	event.Props.SetText(ical.PropSummary, entry.Summary)

	// Available time does not make the provider busy.
	transparency := "OPAQUE"
	if entry.Kind == domain.EntryAvailable {
		transparency = "TRANSPARENT"
	}
	event.Props.SetText(ical.PropTransparency, transparency)

	setCustom(event, PropXNestly, "1")
	setCustom(event, PropXNestlyKind, string(entry.Kind))
	setCustom(event, PropXNestlyProvider, entry.ProviderID.String())

	cal.Children = append(cal.Children, event.Component)
	return cal
}

func setCustom(event *ical.Event, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	event.Props[name] = []ical.Prop{*prop}
}
