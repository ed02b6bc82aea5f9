package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
)

func Test_memberApi_invite(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	inv := member.Invitation{
		FirstName:     "Léa",
		LastName:      "Martin",
		Email:         "LEA@school.test",
		AcademicLevel: "M1",
		Interests:     []string{"Sport", "sport", "culture"},
	}

	tests := []httpTest{
		{
			name:     "student cannot invite",
			method:   http.MethodPost,
			path:     "/v1/schools/members",
			body:     marchallObj(t, inv),
			token:    w.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "association cannot invite students",
			method:   http.MethodPost,
			path:     "/v1/schools/members",
			body:     marchallObj(t, inv),
			token:    w.managerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "invalid invitation",
			method:   http.MethodPost,
			path:     "/v1/schools/members",
			body:     marchallObj(t, member.Invitation{FirstName: "Léa", Email: "lea"}),
			token:    w.schoolToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"last_name": "this field is required",
				"email":     "email must be a valid email address",
			}),
		},
		{
			name:     "email taken",
			method:   http.MethodPost,
			path:     "/v1/schools/members",
			body:     marchallObj(t, member.Invitation{FirstName: "Kim", LastName: "Bis", Email: "kim@school.test"}),
			token:    w.schoolToken,
			wantCode: http.StatusBadRequest,
		},
	}
	w.run(t, tests)

	t.Run("student", func(t *testing.T) {
		rec := w.serve(http.MethodPost, "/v1/schools/members", w.schoolToken, marchallObj(t, inv))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var sm member.SchoolMember
		unmarchall(t, rec, &sm)
		assert.Equal(t, w.school.ID, sm.SchoolID)
		assert.Equal(t, "lea@school.test", sm.Email)
		assert.Equal(t, []string{"sport", "culture"}, sm.Interests)
		assert.Equal(t, member.StatusActive, sm.Status)

		usr, err := w.Users.GetByID(ctx, sm.UserID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleStudent, usr.Role)
		assert.False(t, usr.HasPassword())

		sent := w.Mail.SentMessages()
		require.NotEmpty(t, sent)
		last := sent[len(sent)-1]
		assert.Equal(t, "invitation", last.TemplateName)
		assert.Equal(t, "lea@school.test", last.To[0].Address)
	})

	t.Run("association member", func(t *testing.T) {
		rec := w.serve(http.MethodPost, "/v1/associations/members", w.managerToken, marchallObj(t, member.Invitation{
			FirstName: "Noé",
			LastName:  "Petit",
			Email:     "noe@asso.test",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var am member.AssociationMember
		unmarchall(t, rec, &am)
		assert.Equal(t, w.asso.ID, am.AssociationID)
	})

	t.Run("school admin", func(t *testing.T) {
		rec := w.serve(http.MethodPost, "/v1/schools/admins", w.schoolToken, marchallObj(t, member.Invitation{
			FirstName: "Eva",
			LastName:  "Roux",
			Email:     "eva@school.test",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var sa member.SchoolAdmin
		unmarchall(t, rec, &sa)
		assert.Equal(t, w.school.ID, sa.SchoolID)

		usr, err := w.Users.GetByID(ctx, sa.UserID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleSchool, usr.Role)
	})
}

func Test_memberApi_setStatus(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	colleague := createColleague(t, w)
	inactive := marchallObj(t, member.SetStatus{Status: member.StatusInactive})

	tests := []httpTest{
		{
			name:     "unknown kind",
			method:   http.MethodPut,
			path:     "/v1/members/tutor/" + w.student.ID + "/status",
			body:     inactive,
			token:    w.schoolToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "unknown member",
			method:   http.MethodPut,
			path:     "/v1/members/school/unknown/status",
			body:     inactive,
			token:    w.schoolToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "students cannot manage members",
			method:   http.MethodPut,
			path:     "/v1/members/school/" + w.student.ID + "/status",
			body:     inactive,
			token:    w.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "association cannot manage students",
			method:   http.MethodPut,
			path:     "/v1/members/school/" + w.student.ID + "/status",
			body:     inactive,
			token:    w.managerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "other association",
			method:   http.MethodPut,
			path:     "/v1/members/association/" + w.manager.ID + "/status",
			body:     inactive,
			token:    w.outsiderToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "own status",
			method:   http.MethodPut,
			path:     "/v1/members/school-admin/" + w.schoolAdmin.ID + "/status",
			body:     inactive,
			token:    w.schoolToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "invalid status",
			method:   http.MethodPut,
			path:     "/v1/members/school/" + w.student.ID + "/status",
			body:     marchallObj(t, member.SetStatus{Status: "GONE"}),
			token:    w.schoolToken,
			wantCode: http.StatusBadRequest,
		},
	}
	w.run(t, tests)

	rec := w.serve(http.MethodPut, "/v1/members/school/"+w.student.ID+"/status", w.schoolToken, inactive)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prof member.Profile
	unmarchall(t, rec, &prof)
	assert.Equal(t, member.StatusInactive, prof.Status)

	usr, err := w.Users.GetByID(ctx, w.student.UserID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	// an inactive student has no portal left
	rec = w.serve(http.MethodGet, "/v1/dashboard/student", w.studentToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "no active membership for this portal"}),
	}, rec)

	rec = w.serve(http.MethodPut, "/v1/members/association/"+colleague.ID+"/status", w.managerToken, inactive)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &prof)
	assert.Equal(t, colleague.ID, prof.ID)
	assert.Equal(t, member.StatusInactive, prof.Status)
}

func createColleague(t *testing.T, w world) member.AssociationMember {
	t.Helper()
	am, err := w.Members.InviteAssociationMember(context.Background(), w.asso.ID, member.Invitation{
		FirstName: "Zoé",
		LastName:  "Blanc",
		Email:     "zoe@asso.test",
	})
	require.NoError(t, err)
	return am
}
