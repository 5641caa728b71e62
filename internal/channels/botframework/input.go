package botframework

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/observability/metrics"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

var bearerRegex = regexp.MustCompile(`^Bearer\s+(.+)$`)

// Input is the Bot Framework webhook receiver. It authenticates inbound
// requests against the platform's JWK set and turns message activities
// into UserMessages bound to an outbound Channel for the reply path.
type Input struct {
	appID       string
	appPassword string
	keys        *keyCache
	tokens      *TokenProvider
	httpClient  *http.Client
	logger      *logging.Logger
	metrics     *metrics.ChannelMetrics
}

// InputConfig configures the webhook receiver.
type InputConfig struct {
	AppID       string
	AppPassword string
	// OpenIDConfigURL overrides the platform's well-known OpenID
	// configuration endpoint. Tests point this at a local server.
	OpenIDConfigURL string
	// TokenURL overrides the OAuth2 token endpoint used by reply
	// channels built from inbound activities.
	TokenURL    string
	HTTPTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.ChannelMetrics
}

// NewInput creates the input channel and performs the initial JWK
// fetch. A fetch failure is returned so the embedding router can treat
// the channel as unavailable instead of crashing the process.
func NewInput(cfg InputConfig) (*Input, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	in := &Input{
		appID:       cfg.AppID,
		appPassword: cfg.AppPassword,
		keys:        newKeyCache(cfg.OpenIDConfigURL, httpClient, logger, cfg.Metrics),
		tokens: NewTokenProvider(TokenProviderConfig{
			AppID:       cfg.AppID,
			AppPassword: cfg.AppPassword,
			TokenURL:    cfg.TokenURL,
			HTTPClient:  httpClient,
			Logger:      logger,
			Metrics:     cfg.Metrics,
		}),
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}

	if err := in.keys.refresh(context.Background()); err != nil {
		return nil, err
	}
	return in, nil
}

// Name identifies the channel variant.
func (in *Input) Name() string {
	return "botframework"
}

// Metadata extracts transport-specific metadata from the request.
// The Bot Framework receiver has none; activity attachments are merged
// in by the webhook handler.
func (in *Input) Metadata(r *http.Request) map[string]any {
	return nil
}

// OutputChannel returns nil: a reply channel needs a conversation,
// which only exists once an activity arrives.
func (in *Input) OutputChannel() channels.OutputChannel {
	return nil
}

// Blueprint registers the channel's HTTP surface: an unauthenticated
// liveness route and the authenticated webhook.
func (in *Input) Blueprint(onNewMessage channels.NewMessageHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		in.handleWebhook(w, req, onNewMessage)
	})

	return r
}

// validateAuth runs the bearer-token pipeline. It writes the 401
// response itself and reports whether the request may proceed.
func (in *Input) validateAuth(w http.ResponseWriter, r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "No authorization header provided.", http.StatusUnauthorized)
		return false
	}

	in.keys.refreshIfStale(r.Context())

	match := bearerRegex.FindStringSubmatch(authHeader)
	if match == nil {
		http.Error(w, "No Bearer token provided in Authorization header.", http.StatusUnauthorized)
		return false
	}
	tokenString := match[1]

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		in.logger.Error("botframework: JWT token could not be verified", "error", err)
		http.Error(w, "Could not validate JWT token.", http.StatusUnauthorized)
		return false
	}

	kid, _ := unverified.Header["kid"].(string)
	entry, ok := in.keys.lookup(kid)
	if !ok {
		http.Error(w, "JWT key with ID "+kid+" not found.", http.StatusUnauthorized)
		return false
	}

	alg, _ := unverified.Header["alg"].(string)
	_, err = jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) {
			return entry.publicKey, nil
		},
		jwt.WithAudience(in.appID),
		jwt.WithValidMethods([]string{alg}),
	)
	if err != nil {
		in.logger.Error("botframework: JWT token could not be verified", "error", err)
		http.Error(w, "Could not validate JWT token.", http.StatusUnauthorized)
		return false
	}

	return true
}

func (in *Input) handleWebhook(w http.ResponseWriter, r *http.Request, onNewMessage channels.NewMessageHandler) {
	start := time.Now()

	if !in.validateAuth(w, r) {
		in.metrics.ObserveInbound("unknown", "unauthorized")
		return
	}

	activityType := "unknown"
	defer func() {
		in.metrics.ObserveWebhookLatency(activityType, time.Since(start).Seconds())
	}()

	var activity Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		// Authentication passed; the platform still gets its ack so it
		// does not retry a request we cannot parse.
		in.logger.Error("botframework: could not decode activity payload", "error", err)
		in.metrics.ObserveInbound(activityType, "error")
		ackSuccess(w)
		return
	}
	if activity.Type != "" {
		activityType = activity.Type
	}

	metadata := in.Metadata(r)
	if len(activity.Attachments) > 0 {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["attachments"] = activity.Attachments
	}

	if activity.Type == "message" {
		in.dispatchMessage(r.Context(), &activity, metadata, onNewMessage)
		in.metrics.ObserveInbound(activityType, "ok")
	} else {
		in.logger.Info("botframework: ignoring non-message activity", "type", activity.Type)
		in.metrics.ObserveInbound(activityType, "ignored")
	}

	ackSuccess(w)
}

// dispatchMessage builds the reply channel and envelope and invokes the
// message handler. Handler failures are logged and absorbed here; the
// platform must never see a failed delivery as a reason to retry a
// message that was partially processed.
func (in *Input) dispatchMessage(ctx context.Context, activity *Activity, metadata map[string]any, onNewMessage channels.NewMessageHandler) {
	defer func() {
		if rec := recover(); rec != nil {
			in.logger.Error("botframework: panic while handling message", "panic", rec)
		}
	}()

	out := NewChannel(ChannelConfig{
		Conversation: activity.Conversation,
		Bot:          activity.Recipient,
		ServiceURL:   activity.ServiceURL,
		Tokens:       in.tokens,
		HTTPClient:   in.httpClient,
		Logger:       in.logger,
		Metrics:      in.metrics,
	})

	msg := channels.NewUserMessage(channels.UserMessageParams{
		Text:         activity.Text,
		Output:       out,
		SenderID:     activity.From.ID,
		InputChannel: in.Name(),
		MessageID:    activity.ID,
		Metadata:     metadata,
	})

	if err := onNewMessage(ctx, activity.From.ID, msg); err != nil {
		in.logger.Error("botframework: error while handling message", "error", err, "sender_id", activity.From.ID)
	}
}

func ackSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode("success")
}
