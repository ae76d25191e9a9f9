package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
)

const testVaultKey = "0123456789abcdef0123456789abcdef"

// In-memory repository doubles mirroring the SQL guards of the real
// implementations, so the services see the same race outcomes.

type mockOAuthStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newMockOAuthStateRepo() *mockOAuthStateRepo {
	return &mockOAuthStateRepo{states: make(map[string]*models.OAuthState)}
}

func (m *mockOAuthStateRepo) Create(ctx context.Context, st *models.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.State] = st
	return nil
}

func (m *mockOAuthStateRepo) Consume(ctx context.Context, state string, p models.Platform, now time.Time) (*models.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[state]
	if !ok || st.Platform != p || !st.ExpiresAt.After(now) {
		return nil, nil
	}
	delete(m.states, state)
	return st, nil
}

func (m *mockOAuthStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, st := range m.states {
		if !st.ExpiresAt.After(now) {
			delete(m.states, k)
			n++
		}
	}
	return n, nil
}

type mockSocialAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.SocialAccount
}

func newMockSocialAccountRepo() *mockSocialAccountRepo {
	return &mockSocialAccountRepo{nextID: 1, accounts: make(map[int64]*models.SocialAccount)}
}

func (m *mockSocialAccountRepo) add(sa *models.SocialAccount) *models.SocialAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa.ID = m.nextID
	m.nextID++
	m.accounts[sa.ID] = sa
	return sa
}

func (m *mockSocialAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.OrganizationID == sa.OrganizationID &&
			existing.Platform == sa.Platform &&
			existing.AccountID == sa.AccountID {
			existing.AccountName = sa.AccountName
			existing.AccessToken = sa.AccessToken
			existing.RefreshToken = sa.RefreshToken
			existing.PageID = sa.PageID
			existing.PageAccessToken = sa.PageAccessToken
			existing.TokenExpiresAt = sa.TokenExpiresAt
			existing.IsActive = true
			existing.LastError = sql.NullString{}
			existing.LastSyncAt = sa.LastSyncAt
			return existing.ID, nil
		}
	}
	sa.ID = m.nextID
	m.nextID++
	sa.IsActive = true
	m.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (m *mockSocialAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id], nil
}

func (m *mockSocialAccountRepo) ListByOrganization(ctx context.Context, orgID int64) ([]*models.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range m.accounts {
		if sa.OrganizationID == orgID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (m *mockSocialAccountRepo) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range m.accounts {
		if sa.IsActive && sa.TokenExpiresAt.Valid &&
			!sa.TokenExpiresAt.Time.Before(initialTime) && !sa.TokenExpiresAt.Time.After(finalTime) {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (m *mockSocialAccountRepo) CheckByOrganization(ctx context.Context, accountID, orgID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa, ok := m.accounts[accountID]
	return ok && sa.OrganizationID == orgID, nil
}

func (m *mockSocialAccountRepo) SetTokens(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.accounts[id]
	if !ok || existing.AccessToken != oldAccessToken {
		return errors.New("token update conflicted with a concurrent write")
	}
	if sa.AccessToken != "" {
		existing.AccessToken = sa.AccessToken
	}
	if sa.RefreshToken != "" {
		existing.RefreshToken = sa.RefreshToken
	}
	if sa.TokenExpiresAt.Valid {
		existing.TokenExpiresAt = sa.TokenExpiresAt
	}
	existing.LastError = sql.NullString{}
	return nil
}

func (m *mockSocialAccountRepo) SetError(ctx context.Context, id int64, message string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sa, ok := m.accounts[id]; ok {
		sa.LastError = sql.NullString{String: message, Valid: true}
		sa.IsActive = active
	}
	return nil
}

func (m *mockSocialAccountRepo) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

type mockProfileRepo struct {
	profiles map[int64]*models.Profile
}

func newMockProfileRepo(profiles ...*models.Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: make(map[int64]*models.Profile)}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *mockProfileRepo) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	return m.profiles[userID], nil
}

type mockPostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{nextID: 1, posts: make(map[int64]*models.Post)}
}

func (m *mockPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.ID = m.nextID
	m.nextID++
	m.posts[post.ID] = post
	return post.ID, nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id], nil
}

func (m *mockPostRepo) ListByOrganization(ctx context.Context, orgID int64) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (m *mockPostRepo) CheckByOrganization(ctx context.Context, postID, orgID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	return ok && p.OrganizationID == orgID, nil
}

func (m *mockPostRepo) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

type mockPostScheduleRepo struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[int64]*models.PostSchedule
}

func newMockPostScheduleRepo() *mockPostScheduleRepo {
	return &mockPostScheduleRepo{nextID: 1, schedules: make(map[int64]*models.PostSchedule)}
}

func (m *mockPostScheduleRepo) Create(ctx context.Context, tx *sql.Tx, ps *models.PostSchedule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.schedules {
		if existing.PostID == ps.PostID && existing.SocialAccountID == ps.SocialAccountID &&
			(existing.Status == models.PostStatusScheduled || existing.Status == models.PostStatusPublishing) {
			return 0, nil
		}
	}
	ps.ID = m.nextID
	m.nextID++
	m.schedules[ps.ID] = ps
	return ps.ID, nil
}

func (m *mockPostScheduleRepo) GetByID(ctx context.Context, id int64) (*models.PostSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[id], nil
}

func (m *mockPostScheduleRepo) ListByOrganization(ctx context.Context, orgID int64) ([]*models.PostSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostSchedule
	for _, ps := range m.schedules {
		if ps.OrganizationID == orgID {
			out = append(out, ps)
		}
	}
	return out, nil
}

func (m *mockPostScheduleRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostSchedule
	for _, ps := range m.schedules {
		if ps.PostID == postID {
			out = append(out, ps)
		}
	}
	return out, nil
}

func (m *mockPostScheduleRepo) SetPublishing(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.schedules[id]; ok {
		ps.Status = models.PostStatusPublishing
		ps.Attempts++
		ps.LastAttemptAt = sql.NullTime{Time: at, Valid: true}
	}
	return nil
}

func (m *mockPostScheduleRepo) SetPublished(ctx context.Context, id int64, externalPostID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.schedules[id]; ok {
		ps.Status = models.PostStatusPublished
		ps.PublishedPostID = sql.NullString{String: externalPostID, Valid: true}
		ps.PublishedAt = sql.NullTime{Time: at, Valid: true}
		ps.ErrorMessage = sql.NullString{}
	}
	return nil
}

func (m *mockPostScheduleRepo) SetFailed(ctx context.Context, id int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.schedules[id]; ok {
		ps.Status = models.PostStatusFailed
		ps.ErrorMessage = sql.NullString{String: message, Valid: true}
	}
	return nil
}

func (m *mockPostScheduleRepo) RecordAttempt(ctx context.Context, id int64, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.schedules[id]; ok {
		ps.Status = models.PostStatusScheduled
		ps.ErrorMessage = sql.NullString{String: message, Valid: true}
		ps.LastAttemptAt = sql.NullTime{Time: at, Valid: true}
	}
	return nil
}

func (m *mockPostScheduleRepo) Cancel(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.schedules[id]; ok {
		if ps.Status == models.PostStatusScheduled || ps.Status == models.PostStatusPublishing {
			ps.Status = models.PostStatusCancelled
		}
	}
	return nil
}

type mockPublishJobRepo struct {
	mu        sync.Mutex
	nextID    int64
	jobs      map[int64]*models.PublishJob
	schedules *mockPostScheduleRepo
}

func newMockPublishJobRepo(schedules *mockPostScheduleRepo) *mockPublishJobRepo {
	return &mockPublishJobRepo{nextID: 1, jobs: make(map[int64]*models.PublishJob), schedules: schedules}
}

func (m *mockPublishJobRepo) EnqueueDue(ctx context.Context, now time.Time, maxAttempts int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules.mu.Lock()
	defer m.schedules.mu.Unlock()

	var ids []int64
	for _, ps := range m.schedules.schedules {
		if ps.Status != models.PostStatusScheduled || ps.ScheduledFor.After(now) {
			continue
		}
		blocked := false
		for _, job := range m.jobs {
			if job.PostScheduleID == ps.ID &&
				(job.Status == models.JobStatusPending || job.Status == models.JobStatusInProgress) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		job := &models.PublishJob{
			ID:             m.nextID,
			OrganizationID: ps.OrganizationID,
			PostScheduleID: ps.ID,
			Status:         models.JobStatusPending,
			MaxAttempts:    maxAttempts,
			ScheduledFor:   ps.ScheduledFor,
			CreatedAt:      time.Now(),
		}
		m.nextID++
		m.jobs[job.ID] = job
		ids = append(ids, job.ID)
	}
	return ids, nil
}

func (m *mockPublishJobRepo) GetByID(ctx context.Context, id int64) (*models.PublishJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *mockPublishJobRepo) Claim(ctx context.Context, id int64, now time.Time) (*models.PublishJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return nil, nil
	}
	job.Status = models.JobStatusInProgress
	job.Attempts++
	job.StartedAt = sql.NullTime{Time: now, Valid: true}
	copied := *job
	return &copied, nil
}

func (m *mockPublishJobRepo) SetSucceeded(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusSucceeded
		job.CompletedAt = sql.NullTime{Time: at, Valid: true}
		job.ErrorMessage = sql.NullString{}
	}
	return nil
}

func (m *mockPublishJobRepo) SetFailed(ctx context.Context, id int64, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = sql.NullString{String: message, Valid: true}
		job.CompletedAt = sql.NullTime{Time: at, Valid: true}
	}
	return nil
}

func (m *mockPublishJobRepo) SetPending(ctx context.Context, id int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusPending
		job.ErrorMessage = sql.NullString{String: message, Valid: true}
		job.StartedAt = sql.NullTime{}
	}
	return nil
}

func (m *mockPublishJobRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, job := range m.jobs {
		stuck := job.Status == models.JobStatusInProgress && job.StartedAt.Valid && job.StartedAt.Time.Before(cutoff)
		stranded := job.Status == models.JobStatusPending && job.CreatedAt.Before(cutoff)
		if stuck || stranded {
			job.Status = models.JobStatusPending
			job.StartedAt = sql.NullTime{}
			ids = append(ids, job.ID)
		}
	}
	return ids, nil
}

type mockMediaAssetRepo struct {
	mu     sync.Mutex
	nextID int64
	assets []*models.MediaAsset
}

func newMockMediaAssetRepo() *mockMediaAssetRepo {
	return &mockMediaAssetRepo{nextID: 1}
}

func (m *mockMediaAssetRepo) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ma.ID = m.nextID
	m.nextID++
	m.assets = append(m.assets, ma)
	return ma.ID, nil
}

// fakeAdapter is a scriptable platform implementation.
type fakeAdapter struct {
	platformName models.Platform
	configured   bool

	exchangeErr error
	token       *platform.TokenResult

	identity    *platform.AccountIdentity
	identityErr error

	refreshResult *platform.TokenResult
	refreshErr    error

	publishID    string
	publishErr   error
	publishCalls int
	lastCreds    platform.Credentials
	lastContent  platform.PostContent
}

func newFakeAdapter(p models.Platform) *fakeAdapter {
	return &fakeAdapter{
		platformName: p,
		configured:   true,
		token:        &platform.TokenResult{AccessToken: "access-token", RefreshToken: "refresh-token", ExpiresIn: 3600},
		identity:     &platform.AccountIdentity{ExternalID: "ext-1", DisplayName: "Test Account"},
		publishID:    "published-1",
	}
}

func (f *fakeAdapter) Platform() models.Platform { return f.platformName }

func (f *fakeAdapter) Configured() bool { return f.configured }

func (f *fakeAdapter) AuthorizationURL(state string) (string, string, error) {
	return fmt.Sprintf("https://auth.example.com/authorize?state=%s", state), "test-verifier", nil
}

func (f *fakeAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*platform.TokenResult, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeAdapter) ResolveIdentity(ctx context.Context, token *platform.TokenResult) (*platform.AccountIdentity, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeAdapter) RefreshToken(ctx context.Context, token string) (*platform.TokenResult, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshResult, nil
}

func (f *fakeAdapter) Publish(ctx context.Context, creds platform.Credentials, content platform.PostContent) (string, error) {
	f.publishCalls++
	f.lastCreds = creds
	f.lastContent = content
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return f.publishID, nil
}

type enqueueCall struct {
	jobID int64
	delay time.Duration
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	calls    []enqueueCall
	failures int
}

func (f *fakeEnqueuer) EnqueuePublishJob(jobID int64, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueueCall{jobID: jobID, delay: delay})
	if f.failures > 0 {
		f.failures--
		return errors.New("queue is unreachable")
	}
	return nil
}
