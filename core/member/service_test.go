package member_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/tests"
)

func TestService_Invite(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()

	asso, err := s.Members.CreateAssociation(ctx, "  Les Fourmis Vertes ")
	require.NoError(t, err)
	assert.Equal(t, "Les Fourmis Vertes", asso.Name)
	school, err := s.Members.CreateSchool(ctx, "Lycee Victor Hugo")
	require.NoError(t, err)

	t.Run("association member", func(t *testing.T) {
		s.Mail.Reset()
		am, err := s.Members.InviteAssociationMember(ctx, asso.ID, member.Invitation{
			FirstName: "Alice", LastName: "Martin", Email: "alice@asso.test",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, am.ID)
		assert.Equal(t, asso.ID, am.AssociationID)
		assert.Equal(t, member.StatusActive, am.Status)

		usr, err := s.Users.GetByID(ctx, am.UserID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleAssociation, usr.Role)
		assert.Equal(t, "Alice Martin", usr.Name)
		assert.False(t, usr.HasPassword(), "invited users choose their password")

		sent := s.Mail.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "invitation", sent[0].TemplateName)
			assert.Equal(t, "alice@asso.test", sent[0].To[0].Address)
			assert.Contains(t, sent[0].TextContent, "Les Fourmis Vertes")
		}
	})

	t.Run("school member", func(t *testing.T) {
		sm, err := s.Members.InviteSchoolMember(ctx, school.ID, member.Invitation{
			FirstName: "Paul", LastName: "Durand", Email: "paul@school.test",
			AcademicLevel: "L2", Interests: []string{" Ocean", "music", "ocean"},
		})
		require.NoError(t, err)
		assert.Equal(t, school.ID, sm.SchoolID)
		assert.Equal(t, "L2", sm.AcademicLevel)

		got, err := s.Members.GetSchoolMember(ctx, sm.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"ocean", "music"}, got.Interests)

		usr, err := s.Users.GetByID(ctx, sm.UserID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleStudent, usr.Role)
	})

	t.Run("school admin", func(t *testing.T) {
		sa, err := s.Members.InviteSchoolAdmin(ctx, school.ID, member.Invitation{
			FirstName: "Sophie", LastName: "Leroy", Email: "sophie@school.test",
		})
		require.NoError(t, err)

		admins, err := s.Members.QuerySchoolAdmins(ctx, school.ID)
		require.NoError(t, err)
		if assert.Len(t, admins, 1) {
			assert.Equal(t, sa.ID, admins[0].ID)
		}
	})

	t.Run("duplicate email rolls back", func(t *testing.T) {
		before, err := s.Members.QueryAssociationMembers(ctx, asso.ID)
		require.NoError(t, err)

		_, err = s.Members.InviteAssociationMember(ctx, asso.ID, member.Invitation{
			FirstName: "Alice", LastName: "Bis", Email: "alice@asso.test",
		})
		assert.Error(t, err)

		after, err := s.Members.QueryAssociationMembers(ctx, asso.ID)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := s.Members.InviteSchoolMember(ctx, "unknown", member.Invitation{
			FirstName: "Nobody", LastName: "Here", Email: "nobody@school.test",
		})
		assert.Equal(t, member.ErrSchoolNotFound, errors.Cause(err))
	})
}

func TestInvitation_Validate(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()
	testutil.CreateUser(t, s.UserRepo, "Taken", "taken@fourmis.test", "", core.RoleStudent, true)

	inv := member.Invitation{FirstName: " Paul ", LastName: "Durand", Email: " PAUL@School.test "}
	require.NoError(t, inv.Validate(ctx, s.Validate, s.Users))
	assert.Equal(t, "Paul", inv.FirstName)
	assert.Equal(t, "paul@school.test", inv.Email)

	inv = member.Invitation{FirstName: "Paul", LastName: "Durand", Email: "not-an-email"}
	assert.Error(t, inv.Validate(ctx, s.Validate, s.Users))

	inv = member.Invitation{FirstName: "Paul", LastName: "Durand", Email: "taken@fourmis.test"}
	var verr *core.ValidationError
	if assert.ErrorAs(t, inv.Validate(ctx, s.Validate, s.Users), &verr) {
		assert.Equal(t, "email", verr.Fields[0].Field)
	}
}

func TestService_SetStatus(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()

	school := testutil.CreateSchool(t, s.MemberRepo, "Lycee Victor Hugo")
	sm := testutil.CreateStudent(t, s, school.ID, "Paul", "paul@school.test")

	prof, err := s.Members.SetStatus(ctx, member.KindSchool, sm.ID, member.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, member.StatusInactive, prof.Status)

	got, err := s.Members.GetSchoolMember(ctx, sm.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	usr, err := s.Users.GetByID(ctx, sm.UserID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive, "the login identity follows the member status")

	_, err = s.Members.SetStatus(ctx, member.KindSchool, sm.ID, member.StatusActive)
	require.NoError(t, err)
	usr, err = s.Users.GetByID(ctx, sm.UserID)
	require.NoError(t, err)
	assert.True(t, usr.IsActive)

	_, err = s.Members.SetStatus(ctx, member.KindSchool, sm.ID, "BANNED")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = s.Members.SetStatus(ctx, member.KindSchoolAdmin, sm.ID, member.StatusInactive)
	assert.Equal(t, member.ErrNotFound, errors.Cause(err), "ids are scoped to their kind")

	t.Run("another active profile keeps the login", func(t *testing.T) {
		other := testutil.CreateSchool(t, s.MemberRepo, "Lycee Hoche")
		second, err := s.MemberRepo.CreateSchoolMember(ctx, member.SchoolMember{
			Profile: member.Profile{
				UserID:    sm.UserID,
				FirstName: sm.FirstName,
				LastName:  sm.LastName,
				Email:     sm.Email,
				Status:    member.StatusActive,
				CreatedAt: core.NowFunc(),
			},
			SchoolID: other.ID,
		})
		require.NoError(t, err)

		_, err = s.Members.SetStatus(ctx, member.KindSchool, sm.ID, member.StatusInactive)
		require.NoError(t, err)
		usr, err := s.Users.GetByID(ctx, sm.UserID)
		require.NoError(t, err)
		assert.True(t, usr.IsActive)

		_, err = s.Members.SetStatus(ctx, member.KindSchool, second.ID, member.StatusInactive)
		require.NoError(t, err)
		usr, err = s.Users.GetByID(ctx, sm.UserID)
		require.NoError(t, err)
		assert.False(t, usr.IsActive, "no active profile left")
	})
}

func TestService_MembershipsForUser(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()

	asso := testutil.CreateAssociation(t, s.MemberRepo, "Les Fourmis Vertes")
	am := testutil.CreateAssociationMember(t, s, asso.ID, "Alice", "alice@asso.test")

	ms, err := s.Members.MembershipsForUser(ctx, am.UserID)
	require.NoError(t, err)
	assert.False(t, ms.IsEmpty())
	got, ok := ms.AssociationMember(asso.ID)
	assert.True(t, ok)
	assert.Equal(t, am.ID, got.ID)
	assert.Empty(t, ms.SchoolMembers)

	_, ok = ms.AssociationMember("other")
	assert.False(t, ok)

	ms, err = s.Members.MembershipsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, ms.IsEmpty())
}

func TestService_CheckResponsibleMember(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()

	asso := testutil.CreateAssociation(t, s.MemberRepo, "Les Fourmis Vertes")
	other := testutil.CreateAssociation(t, s.MemberRepo, "Autre Asso")
	am := testutil.CreateAssociationMember(t, s, asso.ID, "Alice", "alice@asso.test")

	_, err := s.Members.CheckResponsibleMember(ctx, asso.ID, am.ID)
	assert.NoError(t, err)
	_, err = s.Members.CheckResponsibleMember(ctx, other.ID, am.ID)
	assert.Equal(t, member.ErrNotAssociationMember, err)
	_, err = s.Members.CheckResponsibleMember(ctx, asso.ID, "unknown")
	assert.Equal(t, member.ErrNotAssociationMember, err)
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]member.Kind{
		"association":  member.KindAssociation,
		"School":       member.KindSchool,
		"school-admin": member.KindSchoolAdmin,
	} {
		kind, err := member.ParseKind(s)
		assert.NoError(t, err)
		assert.Equal(t, want, kind)
	}
	_, err := member.ParseKind("tutor")
	assert.Equal(t, member.ErrUnknownKind, err)
	assert.Equal(t, core.RoleSchool, member.KindSchoolAdmin.Role())
}
