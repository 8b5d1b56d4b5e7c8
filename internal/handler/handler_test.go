package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bloodlink-system/internal/middleware"
	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/repository"
	"github.com/mmeshcher/bloodlink-system/internal/service"
)

const (
	testDonorID    = "d7f5c1be-3a55-4cbb-9a2f-1f6a3f1f0001"
	testHospitalID = "d7f5c1be-3a55-4cbb-9a2f-1f6a3f1f0002"
)

type stubService struct {
	user    *model.User
	userErr error

	registerResult *model.User
	registerErr    error

	authResult *model.User
	authErr    error

	request    *model.BloodRequest
	requestErr error

	requests    []model.BloodRequest
	requestsErr error

	users []model.User

	stats *model.Stats

	stock    []model.BloodStock
	adjusted *model.BloodStock
	stockErr error

	announcement  *model.Announcement
	announcements []model.Announcement

	deleteRequestErr error
	deleteUserErr    error
}

func (s *stubService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	return s.registerResult, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	return s.authResult, s.authErr
}

func (s *stubService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) UpdateProfile(ctx context.Context, callerID string, p repository.UpdateProfileParams) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) SearchDonors(ctx context.Context, callerID string, f repository.DonorFilter) ([]model.User, error) {
	return s.users, nil
}

func (s *stubService) Announcements(ctx context.Context, callerID string) ([]model.Announcement, error) {
	return s.announcements, nil
}

func (s *stubService) CreateRequest(ctx context.Context, requesterID string, in service.CreateRequestInput) (*model.BloodRequest, error) {
	return s.request, s.requestErr
}

func (s *stubService) CreateRequestForUser(ctx context.Context, callerRole model.Role, requesterID string, in service.CreateRequestInput) (*model.BloodRequest, error) {
	return s.request, s.requestErr
}

func (s *stubService) MyRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	return s.requests, s.requestsErr
}

func (s *stubService) IncomingRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	return s.requests, s.requestsErr
}

func (s *stubService) CompletedDonations(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	return s.requests, s.requestsErr
}

func (s *stubService) AcceptRequest(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error) {
	return s.request, s.requestErr
}

func (s *stubService) CancelRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	return s.request, s.requestErr
}

func (s *stubService) CompleteRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	return s.request, s.requestErr
}

func (s *stubService) DeleteRequest(ctx context.Context, requestID, callerID string, callerRole model.Role) error {
	return s.deleteRequestErr
}

func (s *stubService) ListUsers(ctx context.Context, callerRole model.Role) ([]model.User, error) {
	if callerRole != model.RoleHospital {
		return nil, service.ErrForbidden
	}
	return s.users, nil
}

func (s *stubService) CreateUserByHospital(ctx context.Context, callerRole model.Role, in service.HospitalCreateUserInput) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) VerifyUser(ctx context.Context, callerRole model.Role, userID string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) DeleteUser(ctx context.Context, callerRole model.Role, userID string) error {
	return s.deleteUserErr
}

func (s *stubService) UpdateUserStatus(ctx context.Context, callerRole model.Role, userID string, canDonate, availabilityStatus *bool) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) Stats(ctx context.Context, callerRole model.Role) (*model.Stats, error) {
	if callerRole != model.RoleHospital {
		return nil, service.ErrForbidden
	}
	return s.stats, nil
}

func (s *stubService) HospitalRequests(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodRequest, error) {
	return s.requests, s.requestsErr
}

func (s *stubService) Inventory(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodStock, error) {
	return s.stock, s.stockErr
}

func (s *stubService) AdjustInventory(ctx context.Context, callerID string, callerRole model.Role, bloodGroup string, delta int) (*model.BloodStock, error) {
	return s.adjusted, s.stockErr
}

func (s *stubService) CreateAnnouncement(ctx context.Context, callerID string, callerRole model.Role, in service.CreateAnnouncementInput) (*model.Announcement, error) {
	return s.announcement, nil
}

func newTestServer(t *testing.T, svc Service) (*httptest.Server, *middleware.AuthMiddleware) {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(svc, zap.NewNop(), auth)
	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)

	return srv, auth
}

func authCookie(t *testing.T, auth *middleware.AuthMiddleware, userID string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec, userID)

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("auth cookie was not set")
	}
	return cookies[0]
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body []byte, cookie *http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func testDonor() *model.User {
	bg := "O+"
	return &model.User{
		ID:                 testDonorID,
		Username:           "donor",
		Role:               model.RoleDonorReceiver,
		Name:               "Donor One",
		BloodGroup:         &bg,
		CanDonate:          true,
		AvailabilityStatus: true,
		CreatedAt:          time.Now(),
	}
}

func testHospital() *model.User {
	return &model.User{
		ID:        testHospitalID,
		Username:  "hospital",
		Role:      model.RoleHospital,
		Name:      "Central Hospital",
		CreatedAt: time.Now(),
	}
}

func TestRegister(t *testing.T) {
	svc := &stubService{registerResult: testDonor()}
	srv, _ := newTestServer(t, svc)

	body := []byte(`{"username":"donor","password":"secret","name":"Donor One"}`)
	resp := doRequest(t, srv, http.MethodPost, "/api/register", body, nil)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	if len(resp.Cookies()) == 0 {
		t.Fatalf("register must set an auth cookie")
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["username"] != "donor" {
		t.Fatalf("username = %v, want donor", got["username"])
	}
	if _, ok := got["passwordHash"]; ok {
		t.Fatalf("response must not expose the password hash")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	srv, _ := newTestServer(t, svc)

	body := []byte(`{"username":"donor","password":"secret","name":"Donor One"}`)
	resp := doRequest(t, srv, http.MethodPost, "/api/register", body, nil)

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestRegister_BadJSON(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, srv, http.MethodPost, "/api/register", []byte(`{not json`), nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		authErr    error
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"username":"donor","password":"secret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       `{"username":"donor","password":"wrong"}`,
			authErr:    service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing password",
			body:       `{"username":"donor"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{authResult: testDonor(), authErr: tt.authErr}
			srv, _ := newTestServer(t, svc)

			resp := doRequest(t, srv, http.MethodPost, "/api/login", []byte(tt.body), nil)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && len(resp.Cookies()) == 0 {
				t.Fatalf("login must set an auth cookie")
			}
		})
	}
}

func TestCurrentUser_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, srv, http.MethodGet, "/api/auth/user", nil, nil)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestCurrentUser(t *testing.T) {
	svc := &stubService{user: testDonor()}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodGet, "/api/auth/user", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
}

func TestCreateRequest(t *testing.T) {
	svc := &stubService{
		request: &model.BloodRequest{
			ID:            "r1",
			RequestedByID: testDonorID,
			HospitalID:    testHospitalID,
			BloodGroup:    "O+",
			Location:      "City",
			Priority:      model.PriorityNormal,
			UnitsNeeded:   1,
			Status:        model.RequestStatusPending,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		},
	}
	srv, auth := newTestServer(t, svc)

	body := []byte(`{"hospitalId":"` + testHospitalID + `","bloodGroup":"O+","location":"City"}`)
	resp := doRequest(t, srv, http.MethodPost, "/api/requests", body, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["status"] != "pending" {
		t.Fatalf("status = %v, want pending", got["status"])
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	svc := &stubService{requestErr: service.ErrValidation}
	srv, auth := newTestServer(t, svc)

	body := []byte(`{"bloodGroup":"O+"}`)
	resp := doRequest(t, srv, http.MethodPost, "/api/requests", body, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAcceptRequest_Conflict(t *testing.T) {
	svc := &stubService{requestErr: repository.ErrRequestNotPending}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodPatch, "/api/requests/r1/accept", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestAcceptRequest_NotFound(t *testing.T) {
	svc := &stubService{requestErr: repository.ErrNotFound}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodPatch, "/api/requests/missing/accept", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestIncomingRequests(t *testing.T) {
	svc := &stubService{
		user: testDonor(),
		requests: []model.BloodRequest{
			{ID: "r1", BloodGroup: "O+", Status: model.RequestStatusPending, Priority: model.PriorityEmergency},
			{ID: "r2", BloodGroup: "O+", Status: model.RequestStatusPending, Priority: model.PriorityNormal},
		},
	}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodGet, "/api/requests/incoming", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d requests, want 2", len(got))
	}
}

func TestDeleteRequest(t *testing.T) {
	svc := &stubService{user: testDonor()}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodDelete, "/api/requests/r1", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestDeleteRequest_Forbidden(t *testing.T) {
	svc := &stubService{user: testDonor(), deleteRequestErr: service.ErrForbidden}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodDelete, "/api/requests/r1", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestStats_ForbiddenForDonor(t *testing.T) {
	svc := &stubService{user: testDonor()}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodGet, "/api/hospital/stats", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestStats(t *testing.T) {
	svc := &stubService{
		user:  testHospital(),
		stats: &model.Stats{TotalDonors: 5, AvailableDonors: 4, PendingRequests: 2, CompletedDonations: 3, TotalHospitals: 1},
	}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodGet, "/api/hospital/stats", nil, authCookie(t, auth, testHospitalID))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got model.Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.TotalDonors != 5 {
		t.Fatalf("totalDonors = %d, want 5", got.TotalDonors)
	}
}

func TestAdjustInventory(t *testing.T) {
	svc := &stubService{
		user: testHospital(),
		adjusted: &model.BloodStock{
			ID: "s1", HospitalID: testHospitalID, BloodGroup: "A+", UnitsAvailable: 7, LastUpdated: time.Now(),
		},
	}
	srv, auth := newTestServer(t, svc)

	body := []byte(`{"bloodGroup":"A+","delta":-3}`)
	resp := doRequest(t, srv, http.MethodPatch, "/api/hospital/inventory", body, authCookie(t, auth, testHospitalID))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["unitsAvailable"] != float64(7) {
		t.Fatalf("unitsAvailable = %v, want 7", got["unitsAvailable"])
	}
}

func TestGetDonors_Filters(t *testing.T) {
	svc := &stubService{user: testDonor(), users: []model.User{*testDonor()}}
	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, srv, http.MethodGet, "/api/donors?bloodGroup=all&available=true", nil, authCookie(t, auth, testDonorID))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d donors, want 1", len(got))
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, srv, http.MethodPost, "/api/logout", nil, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatalf("logout must reset the auth cookie")
	}
	if cookies[0].MaxAge >= 0 && cookies[0].Value != "" {
		t.Fatalf("logout cookie must be expired or empty")
	}
}
