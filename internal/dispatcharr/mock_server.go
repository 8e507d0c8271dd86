// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MockServer provides a configurable Dispatcharr mock for testing.
type MockServer struct {
	*httptest.Server
	mu sync.RWMutex

	username string
	password string

	access      string
	refreshTok  string
	accessTTL   time.Duration
	allAuthFail bool
	rejectAPI   bool
	maxPageSize int

	passwordExchanges int
	refreshExchanges  int

	channels      map[int]*Channel
	nextChannelID int
	groups        []ChannelGroup
	logos         map[int]*Logo
	nextLogoID    int
	streams       map[string][]Stream
	accounts      map[int]*Account
	profiles      map[string]bool
	epgImports    []int

	// pollsUntilDone drives the m3u refresh scripts: after a trigger,
	// the account completes on the Nth status poll. -1 never completes.
	pollsUntilDone map[int]int
	pollsSeen      map[int]int
	refreshOutcome map[int]string // "success" (default) or "error"

	failures map[string]int
}

// NewMockServer creates a Dispatcharr mock with default credentials
// admin/secret and a small seed of groups and streams.
func NewMockServer() *MockServer {
	mock := &MockServer{
		username:       "admin",
		password:       "secret",
		accessTTL:      time.Hour,
		channels:       make(map[int]*Channel),
		nextChannelID:  1,
		logos:          make(map[int]*Logo),
		nextLogoID:     1,
		streams:        make(map[string][]Stream),
		accounts:       make(map[int]*Account),
		profiles:       make(map[string]bool),
		pollsUntilDone: make(map[int]int),
		pollsSeen:      make(map[int]int),
		refreshOutcome: make(map[int]string),
		failures:       make(map[string]int),
	}
	mock.SetDefaultData()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts/token/", mock.handleToken)
	mux.HandleFunc("POST /api/accounts/token/refresh/", mock.handleTokenRefresh)
	mux.HandleFunc("GET /api/channels/channels/", mock.handleListChannels)
	mux.HandleFunc("POST /api/channels/channels/", mock.handleCreateChannel)
	mux.HandleFunc("GET /api/channels/channels/{id}/", mock.handleGetChannel)
	mux.HandleFunc("PATCH /api/channels/channels/{id}/", mock.handlePatchChannel)
	mux.HandleFunc("DELETE /api/channels/channels/{id}/", mock.handleDeleteChannel)
	mux.HandleFunc("POST /api/channels/channels/{id}/set-epg/", mock.handleSetEPG)
	mux.HandleFunc("GET /api/channels/groups/", mock.handleGroups)
	mux.HandleFunc("GET /api/channels/streams/", mock.handleStreams)
	mux.HandleFunc("GET /api/channels/logos/", mock.handleListLogos)
	mux.HandleFunc("POST /api/channels/logos/", mock.handleCreateLogo)
	mux.HandleFunc("DELETE /api/channels/logos/{id}/", mock.handleDeleteLogo)
	mux.HandleFunc("GET /api/channels/profiles/{pid}/channels/{cid}/", mock.handleGetProfileChannel)
	mux.HandleFunc("PATCH /api/channels/profiles/{pid}/channels/{cid}/", mock.handlePatchProfileChannel)
	mux.HandleFunc("GET /api/m3u/accounts/", mock.handleListAccounts)
	mux.HandleFunc("GET /api/m3u/accounts/{id}/", mock.handleGetAccount)
	mux.HandleFunc("POST /api/m3u/refresh/{id}/", mock.handleTriggerRefresh)
	mux.HandleFunc("POST /api/epg/import/", mock.handleEPGImport)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetDefaultData seeds realistic upstream state.
func (m *MockServer) SetDefaultData() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups = []ChannelGroup{
		{ID: 1, Name: "NFL Sunday Ticket"},
		{ID: 2, Name: "NBA League Pass"},
	}
	m.streams["NFL Sunday Ticket"] = []Stream{
		{ID: 101, Name: "NFL 01: Cowboys vs Giants", URL: "http://upstream/101", ChannelGroup: 1},
		{ID: 102, Name: "NFL 02: Eagles vs Commanders", URL: "http://upstream/102", ChannelGroup: 1},
		{ID: 103, Name: "NFL 03: Packers @ Bears (spanish)", URL: "http://upstream/103", ChannelGroup: 1},
	}
	m.accounts[1] = &Account{ID: 1, Name: "provider-a", Status: accountStatusIdle, UpdatedAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Second)}
	m.accounts[2] = &Account{ID: 2, Name: "provider-b", Status: accountStatusIdle, UpdatedAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Second)}
}

// Credentials returns the account the mock accepts.
func (m *MockServer) Credentials() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username, m.password
}

// PasswordExchanges reports how many full password exchanges happened.
func (m *MockServer) PasswordExchanges() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passwordExchanges
}

// RefreshExchanges reports how many token refreshes happened.
func (m *MockServer) RefreshExchanges() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshExchanges
}

// ExpireTokens invalidates the outstanding access and refresh tokens so
// the next authenticated call answers 401.
func (m *MockServer) ExpireTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = ""
	m.refreshTok = ""
}

// SetAccessTTL controls the exp claim on issued access tokens.
func (m *MockServer) SetAccessTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessTTL = ttl
}

// FailAllAuth makes every token endpoint answer 401.
func (m *MockServer) FailAllAuth(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allAuthFail = fail
}

// RejectAPICalls makes every API endpoint answer 401 even with a fresh
// token, while the token endpoints keep working.
func (m *MockServer) RejectAPICalls(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectAPI = reject
}

// SetMaxPageSize caps the server-side page size so pagination kicks in
// below the client's requested page_size.
func (m *MockServer) SetMaxPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxPageSize = n
}

// SetFailures sets the number of 500 responses before success for an
// endpoint path.
func (m *MockServer) SetFailures(endpoint string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpoint] = count
}

// AddStream appends a stream to a named group.
func (m *MockServer) AddStream(group string, s Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[group] = append(m.streams[group], s)
}

// SetAccount replaces an m3u account record.
func (m *MockServer) SetAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := a
	m.accounts[a.ID] = &cp
}

// ScriptRefresh makes account id complete after n polls with the given
// outcome ("success" or "error"); n < 0 never completes.
func (m *MockServer) ScriptRefresh(id, n int, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollsUntilDone[id] = n
	m.refreshOutcome[id] = outcome
}

// StoredChannel returns a copy of the stored channel, or nil.
func (m *MockServer) StoredChannel(id int) *Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil
	}
	cp := *ch
	return &cp
}

// EPGImports lists the EPG source ids import was triggered for.
func (m *MockServer) EPGImports() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.epgImports...)
}

func (m *MockServer) failOnce(w http.ResponseWriter, endpoint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[endpoint] > 0 {
		m.failures[endpoint]--
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return true
	}
	return false
}

// authorized validates the bearer token; on failure it writes the DRF
// 401 body and returns false.
func (m *MockServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	m.mu.RLock()
	ok := !m.rejectAPI && m.access != "" && r.Header.Get("Authorization") == "Bearer "+m.access
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
	}
	return ok
}

// issueAccess mints a signed access token carrying the configured TTL
// as its exp claim.
func (m *MockServer) issueAccess() string {
	claims := jwt.MapClaims{"exp": time.Now().Add(m.accessTTL).Unix(), "token_type": "access"}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("mock-secret"))
	if err != nil {
		signed = fmt.Sprintf("opaque-%d", time.Now().UnixNano())
	}
	m.access = signed
	return signed
}

func (m *MockServer) issueTokens() (string, string) {
	access := m.issueAccess()
	m.refreshTok = uuid.NewString()
	return access, m.refreshTok
}

func (m *MockServer) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwordExchanges++
	if m.allAuthFail || creds.Username != m.username || creds.Password != m.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	access, refresh := m.issueTokens()
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (m *MockServer) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshExchanges++
	if m.allAuthFail || m.refreshTok == "" || payload.Refresh != m.refreshTok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": m.issueAccess()})
}

func (m *MockServer) handleListChannels(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	m.mu.RLock()
	items := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		items = append(items, *ch)
	}
	maxPS := m.maxPageSize
	m.mu.RUnlock()
	writePage(w, r, items, maxPS)
}

func (m *MockServer) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	if m.failOnce(w, "/api/channels/channels/") {
		return
	}
	var req ChannelCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"name": {"This field is required."}})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ch := &Channel{
		ID:             m.nextChannelID,
		ChannelNumber:  req.ChannelNumber,
		Name:           req.Name,
		ChannelGroupID: req.ChannelGroupID,
		TvgID:          req.TvgID,
		UUID:           uuid.NewString(),
		LogoID:         req.LogoID,
		Streams:        req.Streams,
	}
	m.nextChannelID++
	m.channels[ch.ID] = ch
	writeJSON(w, http.StatusCreated, ch)
}

func (m *MockServer) channelFromPath(w http.ResponseWriter, r *http.Request) (*Channel, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return nil, false
	}
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return nil, false
	}
	return ch, true
}

func (m *MockServer) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	ch, ok := m.channelFromPath(w, r)
	if !ok {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeJSON(w, http.StatusOK, ch)
}

func (m *MockServer) handlePatchChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	ch, ok := m.channelFromPath(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := patch["name"].(string); ok {
		ch.Name = v
	}
	if v, ok := patch["channel_number"].(float64); ok {
		ch.ChannelNumber = v
	}
	if v, ok := patch["tvg_id"].(string); ok {
		ch.TvgID = v
	}
	if v, ok := patch["channel_group_id"].(float64); ok {
		ch.ChannelGroupID = int(v)
	}
	writeJSON(w, http.StatusOK, ch)
}

func (m *MockServer) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	ch, ok := m.channelFromPath(w, r)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, ch.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handleSetEPG(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	ch, ok := m.channelFromPath(w, r)
	if !ok {
		return
	}
	var payload struct {
		EPGDataID int `json:"epg_data_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch.EPGDataID = &payload.EPGDataID
	writeJSON(w, http.StatusOK, ch)
}

func (m *MockServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	if m.failOnce(w, "/api/channels/groups/") {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeJSON(w, http.StatusOK, m.groups)
}

func (m *MockServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	m.mu.RLock()
	group := r.URL.Query().Get("channel_group")
	items := append([]Stream(nil), m.streams[group]...)
	maxPS := m.maxPageSize
	m.mu.RUnlock()
	writePage(w, r, items, maxPS)
}

func (m *MockServer) handleListLogos(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	m.mu.RLock()
	items := make([]Logo, 0, len(m.logos))
	for _, l := range m.logos {
		items = append(items, *l)
	}
	maxPS := m.maxPageSize
	m.mu.RUnlock()
	writePage(w, r, items, maxPS)
}

func (m *MockServer) handleCreateLogo(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	var req struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logos {
		if l.URL == req.URL {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"url": {"logo with this url already exists."}})
			return
		}
	}
	logo := &Logo{ID: m.nextLogoID, Name: req.Name, URL: req.URL}
	m.nextLogoID++
	m.logos[logo.ID] = logo
	writeJSON(w, http.StatusCreated, logo)
}

func (m *MockServer) handleDeleteLogo(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.logos[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	delete(m.logos, id)
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handleGetProfileChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := r.PathValue("pid") + "/" + r.PathValue("cid")
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": m.profiles[key]})
}

func (m *MockServer) handlePatchProfileChannel(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.PathValue("pid") + "/" + r.PathValue("cid")
	m.profiles[key] = payload.Enabled
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": payload.Enabled})
}

func (m *MockServer) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		items = append(items, *a)
	}
	writeJSON(w, http.StatusOK, items)
}

func (m *MockServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	// Advance the scripted refresh on every poll of a fetching account.
	if a.Status == accountStatusFetching {
		m.pollsSeen[id]++
		target, scripted := m.pollsUntilDone[id]
		if !scripted {
			target = 1
		}
		if target >= 0 && m.pollsSeen[id] >= target {
			if m.refreshOutcome[id] == accountStatusError {
				a.Status = accountStatusError
				if a.LastMessage == "" {
					a.LastMessage = "playlist fetch failed"
				}
			} else {
				a.Status = accountStatusSuccess
				a.UpdatedAt = time.Now().UTC().Truncate(time.Second)
			}
		}
	}
	writeJSON(w, http.StatusOK, a)
}

func (m *MockServer) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return
	}
	if m.failOnce(w, "/api/m3u/refresh/") {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	a.Status = accountStatusFetching
	m.pollsSeen[id] = 0
	w.WriteHeader(http.StatusAccepted)
}

func (m *MockServer) handleEPGImport(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(w, r) {
		return
	}
	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epgImports = append(m.epgImports, payload.ID)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writePage serves a slice through the DRF pagination envelope,
// honoring page and page_size query parameters up to maxPageSize.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T, maxPageSize int) {
	pageSize := 1000
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	if maxPageSize > 0 && pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pageNum := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		pageNum = v
	}

	start := (pageNum - 1) * pageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	next := ""
	if end < len(items) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(pageNum+1))
		// Absolute link with a foreign host, the way a reverse-proxied
		// upstream reports itself.
		next = "http://dispatcharr.internal" + r.URL.Path + "?" + q.Encode()
	}

	writeJSON(w, http.StatusOK, page[T]{
		Count:    len(items),
		Next:     next,
		Previous: "",
		Results:  items[start:end],
	})
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}
