package application

import (
	"strings"

	"github.com/KOMKZ/go-yogan-admission/httpx"
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PolicyView is the JSON form of one configured policy.
type PolicyView struct {
	ID           string         `json:"id"`
	Strategy     string         `json:"strategy"`
	Backend      string         `json:"backend"`
	KeyType      string         `json:"key_type"`
	DefaultLimit int            `json:"default_limit"`
	WindowSize   string         `json:"window_size"`
	Limits       map[string]int `json:"limits,omitempty"`
	Active       bool           `json:"active"`                 // a limiter has been built
	TrackedKeys  int            `json:"tracked_keys,omitempty"` // in-process limiters only
}

// keyCounter is implemented by the in-process limiters.
type keyCounter interface {
	Keys() int
}

type ListPoliciesRequest struct{}

type ListPoliciesResponse struct {
	DefaultPolicy string       `json:"default_policy"`
	Policies      []PolicyView `json:"policies"`
}

// KeyStateRequest reads /policies/:policy/state?key=...
type KeyStateRequest struct {
	Policy string `uri:"policy" json:"policy"`
	Key    string `form:"key" json:"key"`
}

func (r *KeyStateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Policy, validation.Required),
		validation.Field(&r.Key, validation.Required),
	)
}

// KeyStateResponse is a key's counters as the limiter sees them. Reading never consumes.
type KeyStateResponse struct {
	Policy            string `json:"policy"`
	Key               string `json:"key"`
	Limit             int    `json:"limit"`
	Count             int    `json:"count"`
	Remaining         int    `json:"remaining"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

type admissionAPI struct {
	factory   *limiter.Factory
	admission *limiter.Config
}

func registerAdmissionRoutes(engine *gin.Engine, prefix string, api *admissionAPI) {
	group := engine.Group(prefix)
	group.GET("/policies", httpx.Wrap(api.listPolicies))
	group.GET("/policies/:policy/state", httpx.Wrap(api.keyState))
}

func (a *admissionAPI) listPolicies(_ *gin.Context, _ *ListPoliciesRequest) (*ListPoliciesResponse, error) {
	active := make(map[string]bool, a.factory.Len())
	tracked := make(map[string]int, a.factory.Len())
	a.factory.Range(func(id string, l limiter.RateLimiter) bool {
		active[id] = true
		if kc, ok := limiter.Unwrap(l).(keyCounter); ok {
			tracked[id] = kc.Keys()
		}
		return true
	})

	resp := &ListPoliciesResponse{DefaultPolicy: a.admission.DefaultPolicy}
	for _, id := range a.admission.PolicyIDs() {
		p, _ := a.admission.Policy(id)
		resp.Policies = append(resp.Policies, PolicyView{
			ID:           id,
			Strategy:     string(p.Strategy),
			Backend:      string(p.Backend),
			KeyType:      string(p.KeyType),
			DefaultLimit: p.DefaultLimit,
			WindowSize:   p.WindowSize.String(),
			Limits:       p.Limits,
			Active:       active[id],
			TrackedKeys:  tracked[id],
		})
	}
	return resp, nil
}

func (a *admissionAPI) keyState(c *gin.Context, req *KeyStateRequest) (*KeyStateResponse, error) {
	id := strings.ToLower(req.Policy)
	policy, ok := a.admission.Policy(id)
	if !ok {
		return nil, httpx.ErrNotFound.WithMsgf("policy %s is not configured", id)
	}
	l, err := a.factory.GetOrCreate(id, policy)
	if err != nil {
		return nil, err
	}

	ctx := c.Request.Context()
	count, err := l.CurrentCount(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	retry, err := l.RetryAfterSeconds(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	return &KeyStateResponse{
		Policy:            id,
		Key:               req.Key,
		Limit:             policy.LimitFor(req.Key),
		Count:             count,
		Remaining:         policy.Remaining(req.Key, count),
		RetryAfterSeconds: retry,
	}, nil
}
