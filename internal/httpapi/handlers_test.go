package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/hub"
	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/DoyleJ11/operator-board/internal/store"
	"github.com/DoyleJ11/operator-board/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func testRoster() *roster.Index {
	return roster.New([]roster.Group{
		{Letter: "A", Operators: []roster.Operator{{Name: "Ash", Primary: "R4-C", Secondary: "M45"}}},
		{Letter: "B", Operators: []roster.Operator{
			{Name: "Blitz", Primary: "Flash shield", Secondary: "P12"},
			{Name: "Buck", Primary: "C8-SFW", Secondary: "Skeleton key"},
		}},
	})
}

type fixture struct {
	srv    *httptest.Server
	kv     *store.Memory
	holder *roster.Holder
	hub    *hub.Hub
	api    *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	return newFixtureWithHub(t, opts, hub.Options{KeepProfile: opts.DefaultProfile})
}

func newFixtureWithHub(t *testing.T, opts Options, hubOpts hub.Options) *fixture {
	t.Helper()
	kv := store.NewMemory()
	holder := roster.NewHolder(testRoster())
	h := hub.NewHub(context.Background(), kv, holder, hubOpts, zap.NewNop())
	api := NewServer(h, holder, opts, zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(api))
	t.Cleanup(func() {
		srv.Close()
		h.Stop()
	})
	return &fixture{srv: srv, kv: kv, holder: holder, hub: h, api: api}
}

func (f *fixture) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Options{})

	var got struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 0, got.Sessions)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profiles/a/teams", "", nil))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", &got))
	assert.Equal(t, 1, got.Sessions)

	f.hub.Stop()
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/healthz", "", &got))
}

func (f *fixture) sessions(t *testing.T) int {
	t.Helper()
	var got struct {
		Sessions int `json:"sessions"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", &got))
	return got.Sessions
}

func TestVersion(t *testing.T) {
	f := newFixture(t, Options{})

	var got map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/version", "", &got))
	assert.Empty(t, got)

	f.api.SetVersion("1.2.0")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/version", "", &got))
	assert.Equal(t, map[string]string{"version": "1.2.0", "label": "v1.2.0"}, got)
}

func TestRoster_FilterMode(t *testing.T) {
	f := newFixture(t, Options{LetterMode: roster.LetterFilter})

	var got rosterResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster?q=b", "", &got))
	assert.True(t, got.Loaded)
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "B", got.Groups[0].Letter)
	assert.Len(t, got.Groups[0].Operators, 2)

	got = rosterResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster?q=b&letter=A", "", &got))
	assert.Empty(t, got.Groups)

	// Toggling the active letter clears it.
	got = rosterResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster?letter=a&toggle=A", "", &got))
	assert.Equal(t, "", got.Letter)
	assert.Len(t, got.Groups, 2)

	got = rosterResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster?toggle=b", "", &got))
	assert.Equal(t, "B", got.Letter)
	require.Len(t, got.Groups, 1)
}

func TestRoster_JumpModeIgnoresLetter(t *testing.T) {
	f := newFixture(t, Options{LetterMode: roster.LetterJump})

	var got rosterResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster?letter=A&toggle=B", "", &got))
	assert.Equal(t, "jump", got.Mode)
	assert.Equal(t, "", got.Letter)
	assert.Len(t, got.Groups, 2)
}

func TestRoster_NotLoadedYet(t *testing.T) {
	kv := store.NewMemory()
	holder := roster.NewHolder(nil)
	h := hub.NewHub(context.Background(), kv, holder, hub.Options{}, zap.NewNop())
	defer h.Stop()
	srv := httptest.NewServer(SetupRoutes(NewServer(h, holder, Options{}, zap.NewNop())))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/roster?q=a")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got rosterResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.False(t, got.Loaded)
	assert.Empty(t, got.Groups)
}

func TestLettersAndJump(t *testing.T) {
	f := newFixture(t, Options{})

	var letters struct {
		Targets map[string]bool `json:"targets"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster/letters?q=uck", "", &letters))
	assert.Len(t, letters.Targets, 26)
	assert.True(t, letters.Targets["B"])
	assert.False(t, letters.Targets["A"])

	var jump struct {
		Letter string `json:"letter"`
		Anchor string `json:"anchor"`
		Exists bool   `json:"exists"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster/jump/A", "", &jump))
	assert.True(t, jump.Exists)
	assert.Equal(t, "letter-A", jump.Anchor)

	jump.Exists, jump.Anchor = true, ""
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roster/jump/Q", "", &jump))
	assert.False(t, jump.Exists)
	assert.Empty(t, jump.Anchor)
}

func TestTeams_AssignAndEquipment(t *testing.T) {
	f := newFixture(t, Options{})

	var state teamsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/teams/2/slots/3/equipment/kit2", `{"value":"Breach Charge"}`, &state))
	assert.Equal(t, "Breach Charge", state.Teams[2][3].Equipment.Kit2)

	state = teamsResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/teams/2/slots/3/operator", `{"name":"Buck"}`, &state))
	require.NotNil(t, state.Teams[2][3].Operator)
	assert.Equal(t, board.OperatorRef{Name: "Buck", Primary: "C8-SFW", Secondary: "Skeleton key"}, *state.Teams[2][3].Operator)
	assert.Equal(t, "Breach Charge", state.Teams[2][3].Equipment.Kit2)
	assert.Equal(t, 2, state.Version)

	saved, err := f.kv.Get(context.Background(), board.StorageKey)
	require.NoError(t, err)
	restored, err := board.Deserialize(saved, nil)
	require.NoError(t, err)
	assert.Equal(t, state.Teams, restored.Teams())
}

func TestTeams_Errors(t *testing.T) {
	f := newFixture(t, Options{})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "team out of range", method: http.MethodPut, path: "/api/teams/5/slots/0/operator", body: `{"name":"Ash"}`, status: http.StatusBadRequest},
		{name: "slot not a number", method: http.MethodPut, path: "/api/teams/0/slots/x/operator", body: `{"name":"Ash"}`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPut, path: "/api/teams/0/slots/0/equipment/boots", body: `{"value":"x"}`, status: http.StatusBadRequest},
		{name: "unknown operator", method: http.MethodPut, path: "/api/teams/0/slots/0/operator", body: `{"name":"Nobody"}`, status: http.StatusNotFound},
		{name: "bad json", method: http.MethodPut, path: "/api/teams/0/slots/0/operator", body: `{`, status: http.StatusBadRequest},
		{name: "unexpected body field", method: http.MethodPut, path: "/api/teams/0/slots/0/equipment/armor", body: `{"val":"x"}`, status: http.StatusBadRequest},
		{name: "select without open picker", method: http.MethodPost, path: "/api/picker/select", body: `{"name":"Ash"}`, status: http.StatusConflict},
		{name: "open picker out of range", method: http.MethodPost, path: "/api/picker", body: `{"team":0,"slot":4}`, status: http.StatusBadRequest},
		{name: "open picker missing slot", method: http.MethodPost, path: "/api/picker", body: `{"team":0}`, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tc.status, f.do(t, tc.method, tc.path, tc.body, &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	var state teamsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/teams", "", &state))
	assert.Equal(t, board.Teams{}, state.Teams)
	assert.Equal(t, 0, state.Version)
}

func TestPicker_HTTPFlow(t *testing.T) {
	f := newFixture(t, Options{})

	var view struct {
		Open    bool `json:"open"`
		Target  *struct{ Team, Slot int }
		Results []roster.Operator `json:"results"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/profiles/alice/picker", `{"team":1,"slot":2}`, &view))
	assert.True(t, view.Open)
	assert.Len(t, view.Results, 3)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profiles/alice/picker?q=as", "", &view))
	require.Len(t, view.Results, 1)
	assert.Equal(t, "Ash", view.Results[0].Name)

	var state teamsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/profiles/alice/picker/select", `{"name":"Ash"}`, &state))
	assert.Equal(t, "alice", state.Profile)
	assert.False(t, state.Picker.Open)
	require.NotNil(t, state.Teams[1][2].Operator)
	assert.Equal(t, "Ash", state.Teams[1][2].Operator.Name)

	_, err := f.kv.Get(context.Background(), "alice/"+board.StorageKey)
	require.NoError(t, err)

	// Open then dismiss: no mutation.
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/profiles/alice/picker", `{"team":0,"slot":0}`, nil))
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/profiles/alice/picker", "", nil))
	state = teamsResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profiles/alice/teams", "", &state))
	assert.Nil(t, state.Teams[0][0].Operator)
	assert.False(t, state.Picker.Open)
}

func TestResetTeams(t *testing.T) {
	f := newFixture(t, Options{DefaultProfile: "home"})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/teams/0/slots/0/operator", `{"name":"Ash"}`, nil))
	var state teamsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/teams", "", &state))
	assert.Equal(t, "home", state.Profile)
	assert.Equal(t, board.Teams{}, state.Teams)

	saved, err := f.kv.Get(context.Background(), "home/"+board.StorageKey)
	require.NoError(t, err)
	fresh, err := board.New(nil).Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(fresh), string(saved))
}

func TestWebsocket_SnapshotsAndCommands(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?profile=ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	read := func() types.ServerMessage {
		t.Helper()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
	send := func(v any) {
		t.Helper()
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
	}

	first := read()
	require.Equal(t, "StateSnapshot", first.Type)
	require.NotNil(t, first.Teams)

	send(map[string]any{"type": "SetEquipment", "team": 4, "slot": 0, "field": "gloves", "value": "Padded"})
	next := read()
	require.Equal(t, "StateSnapshot", next.Type)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, "Padded", next.Teams[4][0].Equipment.Gloves)

	send(map[string]any{"type": "Assign", "team": 9, "slot": 0, "name": "Ash"})
	errMsg := read()
	assert.Equal(t, "Error", errMsg.Type)
	assert.Contains(t, errMsg.Error, "out of range")

	send(map[string]any{"type": "Teleport"})
	errMsg = read()
	assert.Equal(t, "Error", errMsg.Type)
}

func dialWS(ctx context.Context, t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"+query, nil)
	require.NoError(t, err)
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "StateSnapshot", msg.Type)
	return conn
}

func TestWebsocket_DisconnectReleasesGoroutines(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kv := store.NewMemory()
	holder := roster.NewHolder(testRoster())
	h := hub.NewHub(context.Background(), kv, holder, hub.Options{}, zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(NewServer(h, holder, Options{}, zap.NewNop())))

	for i := 0; i < 20; i++ {
		conn := dialWS(ctx, t, srv, "?profile=churn")
		require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
	}
	require.Eventually(t, func() bool { return h.Sessions(ctx) == 0 }, 2*time.Second, 10*time.Millisecond)

	srv.Close()
	h.Stop()
	goleak.VerifyNone(t, ignore,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"))
}

func TestWebsocket_LastClientReleasesProfile(t *testing.T) {
	f := newFixture(t, Options{DefaultProfile: "home"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	home := dialWS(ctx, t, f.srv, "")
	first := dialWS(ctx, t, f.srv, "?profile=scrim")
	second := dialWS(ctx, t, f.srv, "?profile=scrim")
	assert.Equal(t, 2, f.sessions(t))

	require.NoError(t, first.Close(websocket.StatusNormalClosure, "done"))
	// One scrim client remains attached.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, f.sessions(t))

	require.NoError(t, second.Close(websocket.StatusNormalClosure, "done"))
	require.Eventually(t, func() bool { return f.hub.Sessions(ctx) == 1 }, 2*time.Second, 10*time.Millisecond)

	// The default profile stays open after its last client leaves.
	require.NoError(t, home.Close(websocket.StatusNormalClosure, "done"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.sessions(t))
}

func TestTeams_SurviveIdleEviction(t *testing.T) {
	f := newFixtureWithHub(t, Options{}, hub.Options{IdleTimeout: 20 * time.Millisecond})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/profiles/p/teams/1/slots/1/operator", `{"name":"Buck"}`, nil))
	require.Eventually(t, func() bool { return f.hub.Sessions(context.Background()) == 0 }, 2*time.Second, 10*time.Millisecond)

	var state teamsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profiles/p/teams", "", &state))
	assert.Equal(t, "p", state.Profile)
	require.NotNil(t, state.Teams[1][1].Operator)
	assert.Equal(t, "Buck", state.Teams[1][1].Operator.Name)
}
