package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/fourmis/apps/api/echo"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/tests"
)

func Test_registrationApi_register(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	m := testutil.CreateMission(t, w.Services, w.manager, testutil.MissionParams{MaxParticipants: testutil.IntPtr(2)})
	draft := testutil.CreateMission(t, w.Services, w.manager, testutil.MissionParams{Status: mission.StatusDraft})
	other1 := testutil.CreateStudent(t, w.Services, w.school.ID, "Lou", "lou@school.test")
	other2 := testutil.CreateStudent(t, w.Services, w.school.ID, "Max", "max@school.test")

	body := func(missionID string) []byte {
		return marchallObj(t, registration.NewRegistration{MissionID: missionID})
	}

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "association member",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			token:    w.managerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing mission",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(""),
			token:    w.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ActionResult{Error: "this field is required"}),
		},
		{
			name:     "unknown mission",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body("unknown"),
			token:    w.studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, ActionResult{Error: mission.ErrNotFound.Error()}),
		},
		{
			name:     "draft mission",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(draft.ID),
			token:    w.studentToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, ActionResult{Error: "mission is not open for registration"}),
		},
		{
			name:   "on behalf of another student",
			method: http.MethodPost,
			path:   "/v1/registrations",
			body: marchallObj(t, registration.NewRegistration{
				MissionID:      m.ID,
				SchoolMemberID: other1.ID,
			}),
			token:    w.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, ActionResult{Error: "permission denied"}),
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			token:    w.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ActionResult{Success: true}),
		},
		{
			name:     "already registered",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			token:    w.studentToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, ActionResult{Error: "already registered to this mission"}),
		},
		{
			name:     "second spot",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			token:    w.tokenFor(t, other1.UserID),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ActionResult{Success: true}),
		},
		{
			name:     "full",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     body(m.ID),
			token:    w.tokenFor(t, other2.UserID),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, ActionResult{Error: "mission is full (2 participants max)"}),
		},
	}
	w.run(t, tests)

	got, err := w.Missions.Get(ctx, m.ID)
	require.NoError(t, err)
	capa := got.Capacity()
	assert.True(t, capa.IsFull)
	require.NotNil(t, capa.SpotsLeft)
	assert.Equal(t, 0, *capa.SpotsLeft)
}

func Test_registrationApi_unregister(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	m := testutil.CreateMission(t, w.Services, w.manager, testutil.MissionParams{MaxParticipants: testutil.IntPtr(1)})
	reg, err := w.Registrations.Register(ctx, m.ID, w.student.ID)
	require.NoError(t, err)
	other := testutil.CreateStudent(t, w.Services, w.school.ID, "Lou", "lou@school.test")
	otherToken := w.tokenFor(t, other.UserID)

	path := "/v1/registrations/" + reg.ID
	confirm := func(phrase string) []byte {
		return marchallObj(t, registration.Unregister{Confirmation: phrase})
	}
	wrongPhrase := marchallObj(t, ActionResult{Error: `type "UNREGISTER" to confirm`})

	tests := []httpTest{
		{
			name:     "empty phrase",
			method:   http.MethodDelete,
			path:     path,
			body:     confirm(""),
			token:    w.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: wrongPhrase,
		},
		{
			name:     "lower case phrase",
			method:   http.MethodDelete,
			path:     path,
			body:     confirm("unregister"),
			token:    w.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: wrongPhrase,
		},
		{
			name:     "someone else's registration",
			method:   http.MethodDelete,
			path:     path,
			body:     confirm(testutil.UnregisterPhrase),
			token:    otherToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, ActionResult{Error: "registration not found"}),
		},
		{
			name:     "unknown registration",
			method:   http.MethodDelete,
			path:     "/v1/registrations/unknown",
			body:     confirm(testutil.UnregisterPhrase),
			token:    w.studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, ActionResult{Error: "registration not found"}),
		},
	}
	w.run(t, tests)

	// the spot is still taken
	rec := w.serve(http.MethodPost, "/v1/registrations", otherToken,
		marchallObj(t, registration.NewRegistration{MissionID: m.ID}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = w.serve(http.MethodDelete, path, w.studentToken, confirm(testutil.UnregisterPhrase))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, ActionResult{Success: true})}, rec)

	regs, err := w.Registrations.ListForStudent(ctx, w.student.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)

	// the freed spot can be taken
	rec = w.serve(http.MethodPost, "/v1/registrations", otherToken,
		marchallObj(t, registration.NewRegistration{MissionID: m.ID}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, ActionResult{Success: true})}, rec)
}

func Test_registrationApi_lifecycle(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	m := testutil.CreateMission(t, w.Services, w.manager, testutil.MissionParams{})
	reg, err := w.Registrations.Register(ctx, m.ID, w.student.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "student cannot confirm",
			method:   http.MethodPost,
			path:     "/v1/registrations/" + reg.ID + "/confirm",
			token:    w.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "outsider cannot confirm",
			method:   http.MethodPost,
			path:     "/v1/registrations/" + reg.ID + "/confirm",
			token:    w.outsiderToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "pending cannot be completed",
			method:   http.MethodPost,
			path:     "/v1/registrations/" + reg.ID + "/complete",
			token:    w.managerToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "cannot change registration status from PENDING to COMPLETED"}),
		},
		{
			name:     "unknown",
			method:   http.MethodPost,
			path:     "/v1/registrations/unknown/confirm",
			token:    w.managerToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "registration not found"}),
		},
	}
	w.run(t, tests)

	rec := w.serve(http.MethodPost, "/v1/registrations/"+reg.ID+"/confirm", w.managerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got registration.Registration
	unmarchall(t, rec, &got)
	assert.Equal(t, registration.StatusConfirmed, got.Status)
	assert.True(t, got.ConfirmedAt.Valid)

	sent := w.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "kim@school.test", sent[0].To[0].Address)

	rec = w.serve(http.MethodPost, "/v1/registrations/"+reg.ID+"/complete", w.managerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &got)
	assert.Equal(t, registration.StatusCompleted, got.Status)
	assert.True(t, got.CompletedAt.Valid)

	// completed registrations cannot be withdrawn
	rec = w.serve(http.MethodDelete, "/v1/registrations/"+reg.ID, w.studentToken,
		marchallObj(t, registration.Unregister{Confirmation: testutil.UnregisterPhrase}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, ActionResult{Error: "cannot change registration status from COMPLETED to CANCELLED"}),
	}, rec)

	rec = w.serve(http.MethodGet, "/v1/registrations/mine", w.studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []registration.Details
	unmarchall(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, reg.ID, mine[0].ID)
	assert.Equal(t, registration.StatusCompleted, mine[0].Status)
	assert.Equal(t, m.Title, mine[0].Mission.Title)
}
