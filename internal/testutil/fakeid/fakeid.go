// Package fakeid holds in-memory implementations of the identity backend
// interfaces for tests that do not need MongoDB or Firebase.
package fakeid

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Accounts                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

type account struct {
	p        identity.Principal
	password string
}

// Accounts is an in-memory identity.Accounts. Set the Fail* fields to make
// the matching call return that error.
type Accounts struct {
	mu       sync.Mutex
	byUID    map[string]*account
	seq      int
	calls    map[string]int
	resetFor []string
	tokens   map[string]string // reset token -> uid

	FailCreate         error
	FailVerify         error
	FailUpdatePassword error
	FailDelete         error
	FailSecondary      error

	// Secondary context bookkeeping.
	SecondaryOpened    int
	SecondarySignedOut int
	SecondaryClosed    int
}

func NewAccounts() *Accounts {
	return &Accounts{byUID: map[string]*account{}, calls: map[string]int{}, tokens: map[string]string{}}
}

func (a *Accounts) count(name string) {
	a.calls[name]++
}

// Calls reports how many times method was invoked.
func (a *Accounts) Calls(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}

// TotalCalls is the number of backend calls of any kind.
func (a *Accounts) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		n += c
	}
	return n
}

// ResetsSent lists the addresses SendPasswordReset was called with.
func (a *Accounts) ResetsSent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.resetFor...)
}

// Seed adds an account directly and returns its principal.
func (a *Accounts) Seed(email, password, displayName string) identity.Principal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.insert(identity.NewAccount{Email: email, Password: password, DisplayName: displayName})
}

func (a *Accounts) insert(in identity.NewAccount) identity.Principal {
	a.seq++
	p := identity.Principal{
		UID:         fmt.Sprintf("uid-%d", a.seq),
		Email:       strings.TrimSpace(in.Email),
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
	}
	a.byUID[p.UID] = &account{p: p, password: in.Password}
	return p
}

func (a *Accounts) byEmail(email string) *account {
	for _, acc := range a.byUID {
		if strings.EqualFold(acc.p.Email, strings.TrimSpace(email)) {
			return acc
		}
	}
	return nil
}

func (a *Accounts) create(in identity.NewAccount) (identity.Principal, error) {
	if a.FailCreate != nil {
		return identity.Principal{}, a.FailCreate
	}
	if a.byEmail(in.Email) != nil {
		return identity.Principal{}, identity.ErrEmailInUse
	}
	if in.Password != "" && len(in.Password) < identity.MinPasswordLength {
		return identity.Principal{}, identity.ErrWeakPassword
	}
	return a.insert(in), nil
}

func (a *Accounts) Create(_ context.Context, in identity.NewAccount) (identity.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("Create")
	return a.create(in)
}

func (a *Accounts) VerifyPassword(_ context.Context, email, password string) (identity.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("VerifyPassword")
	if a.FailVerify != nil {
		return identity.Principal{}, a.FailVerify
	}
	acc := a.byEmail(email)
	if acc == nil {
		return identity.Principal{}, identity.ErrUserNotFound
	}
	if acc.password == "" || acc.password != password {
		return identity.Principal{}, identity.ErrWrongPassword
	}
	return acc.p, nil
}

func (a *Accounts) Get(_ context.Context, uid string) (identity.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("Get")
	acc, ok := a.byUID[uid]
	if !ok {
		return identity.Principal{}, identity.ErrUserNotFound
	}
	return acc.p, nil
}

func (a *Accounts) FindByEmail(_ context.Context, email string) (identity.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("FindByEmail")
	acc := a.byEmail(email)
	if acc == nil {
		return identity.Principal{}, identity.ErrUserNotFound
	}
	return acc.p, nil
}

func (a *Accounts) UpdatePassword(_ context.Context, uid, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("UpdatePassword")
	if a.FailUpdatePassword != nil {
		return a.FailUpdatePassword
	}
	acc, ok := a.byUID[uid]
	if !ok {
		return identity.ErrUserNotFound
	}
	if len(password) < identity.MinPasswordLength {
		return identity.ErrWeakPassword
	}
	acc.password = password
	return nil
}

func (a *Accounts) Delete(_ context.Context, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("Delete")
	if a.FailDelete != nil {
		return a.FailDelete
	}
	if _, ok := a.byUID[uid]; !ok {
		return identity.ErrUserNotFound
	}
	delete(a.byUID, uid)
	return nil
}

func (a *Accounts) SendPasswordReset(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("SendPasswordReset")
	if a.byEmail(email) == nil {
		return identity.ErrUserNotFound
	}
	a.resetFor = append(a.resetFor, email)
	return nil
}

// IssueResetToken returns a single-use reset token for email's account.
func (a *Accounts) IssueResetToken(email string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.byEmail(email)
	if acc == nil {
		return ""
	}
	tok := fmt.Sprintf("tok-%s-%d", acc.p.UID, len(a.tokens)+1)
	a.tokens[tok] = acc.p.UID
	return tok
}

func (a *Accounts) CompletePasswordReset(_ context.Context, token, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("CompletePasswordReset")
	uid, ok := a.tokens[token]
	if !ok {
		return identity.ErrResetTokenInvalid
	}
	delete(a.tokens, token)
	acc, ok := a.byUID[uid]
	if !ok {
		return identity.ErrResetTokenInvalid
	}
	acc.password = password
	return nil
}

// Exists reports whether an account with uid is present.
func (a *Accounts) Exists(uid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.byUID[uid]
	return ok
}

func (a *Accounts) Secondary(context.Context) (identity.AuthContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count("Secondary")
	if a.FailSecondary != nil {
		return nil, a.FailSecondary
	}
	a.SecondaryOpened++
	return &secondary{parent: a}, nil
}

// OpenSecondaries is the number of secondary contexts not yet closed.
func (a *Accounts) OpenSecondaries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.SecondaryOpened - a.SecondaryClosed
}

type secondary struct {
	parent *Accounts
	signed *identity.Principal
	closed bool
}

func (s *secondary) Create(_ context.Context, in identity.NewAccount) (identity.Principal, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.count("Secondary.Create")
	if s.closed {
		return identity.Principal{}, fmt.Errorf("secondary context closed")
	}
	p, err := s.parent.create(in)
	if err != nil {
		return identity.Principal{}, err
	}
	s.signed = &p
	return p, nil
}

func (s *secondary) SignOut(context.Context) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.signed = nil
	s.parent.SecondarySignedOut++
	return nil
}

func (s *secondary) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.parent.SecondaryClosed++
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Profiles                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// Profiles is an in-memory identity.Profiles.
type Profiles struct {
	mu    sync.Mutex
	docs  map[string]models.UserProfile
	order []string
	gets  int

	FailGet  error
	FailList error
}

func NewProfiles() *Profiles {
	return &Profiles{docs: map[string]models.UserProfile{}}
}

// Put stores p as-is, bypassing merge rules.
func (p *Profiles) Put(prof models.UserProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.docs[prof.UID]; !ok {
		p.order = append(p.order, prof.UID)
	}
	p.docs[prof.UID] = prof
}

// Gets reports how many Get calls were made.
func (p *Profiles) Gets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}

func (p *Profiles) Get(_ context.Context, uid string) (models.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.FailGet != nil {
		return models.UserProfile{}, p.FailGet
	}
	prof, ok := p.docs[uid]
	if !ok {
		return models.UserProfile{}, identity.ErrProfileNotFound
	}
	return prof, nil
}

func (p *Profiles) Upsert(_ context.Context, prof models.UserProfile, merge bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, exists := p.docs[prof.UID]
	if !exists {
		p.order = append(p.order, prof.UID)
	}
	if merge && exists {
		if prof.Username != "" {
			cur.Username = prof.Username
		}
		if prof.Email != "" {
			cur.Email = prof.Email
		}
		if prof.PhotoURL != "" {
			cur.PhotoURL = prof.PhotoURL
		}
		if prof.Role != "" {
			cur.Role = prof.Role
		}
		if prof.CreatedAt != nil {
			cur.CreatedAt = prof.CreatedAt
		}
		prof = cur
	}
	p.docs[prof.UID] = prof
	return nil
}

func (p *Profiles) List(context.Context) ([]models.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailList != nil {
		return nil, p.FailList
	}
	out := make([]models.UserProfile, 0, len(p.docs))
	for _, uid := range p.order {
		if prof, ok := p.docs[uid]; ok {
			out = append(out, prof)
		}
	}
	return out, nil
}

func (p *Profiles) Update(_ context.Context, uid string, patch identity.ProfilePatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.docs[uid]
	if !ok {
		return identity.ErrProfileNotFound
	}
	prof.Username = patch.Username
	prof.Email = patch.Email
	prof.Role = patch.Role
	p.docs[uid] = prof
	return nil
}

func (p *Profiles) Delete(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.docs[uid]; !ok {
		return identity.ErrProfileNotFound
	}
	delete(p.docs, uid)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Alerts                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// Alerts is an in-memory identity.Alerts whose Subscribe re-emits after
// every Add or Delete.
type Alerts struct {
	mu   sync.Mutex
	data map[string][]models.Alert
	subs map[string][]chan []models.Alert
}

func NewAlerts() *Alerts {
	return &Alerts{data: map[string][]models.Alert{}, subs: map[string][]chan []models.Alert{}}
}

func (a *Alerts) sorted(uid string) []models.Alert {
	out := append([]models.Alert(nil), a.data[uid]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (a *Alerts) notify(uid string) {
	snap := a.sorted(uid)
	for _, ch := range a.subs[uid] {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Add stores an alert for uid, as the detection pipeline would.
func (a *Alerts) Add(uid string, al models.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	al.UID = uid
	a.data[uid] = append(a.data[uid], al)
	a.notify(uid)
}

func (a *Alerts) List(_ context.Context, uid string) ([]models.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sorted(uid), nil
}

func (a *Alerts) Delete(_ context.Context, uid, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	list := a.data[uid]
	for i, al := range list {
		if al.ID == id {
			a.data[uid] = append(list[:i:i], list[i+1:]...)
			a.notify(uid)
			return nil
		}
	}
	return identity.ErrAlertNotFound
}

func (a *Alerts) Subscribe(ctx context.Context, uid string) (<-chan []models.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan []models.Alert, 8)
	ch <- a.sorted(uid)
	a.subs[uid] = append(a.subs[uid], ch)

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		defer a.mu.Unlock()
		subs := a.subs[uid]
		for i, c := range subs {
			if c == ch {
				a.subs[uid] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Backend                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Backend bundles one of each fake so handler tests can build a Service
// and still reach the fakes to seed and inspect them.
type Backend struct {
	Accounts *Accounts
	Profiles *Profiles
	Alerts   *Alerts
}

func New() *Backend {
	return &Backend{Accounts: NewAccounts(), Profiles: NewProfiles(), Alerts: NewAlerts()}
}

// Service builds an identity.Service over b. events may be nil.
func (b *Backend) Service(events identity.Publisher) *identity.Service {
	return identity.NewService(b.Accounts, b.Profiles, b.Alerts, events, zap.NewNop(), identity.Options{})
}
