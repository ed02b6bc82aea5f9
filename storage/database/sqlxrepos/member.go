package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
)

const profileColumns = "id, user_id, first_name, last_name, email, phone, status, created_at"

type (
	organizationRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	profileRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		FirstName string    `db:"first_name"`
		LastName  string    `db:"last_name"`
		Email     string    `db:"email"`
		Phone     string    `db:"phone"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}

	associationMemberRow struct {
		profileRow
		AssociationID string `db:"association_id"`
	}

	schoolMemberRow struct {
		profileRow
		SchoolID      string `db:"school_id"`
		AcademicLevel string `db:"academic_level"`
		Interests     string `db:"interests"`
	}

	schoolAdminRow struct {
		profileRow
		SchoolID string `db:"school_id"`
	}
)

func (r profileRow) toProfile() member.Profile {
	return member.Profile{
		ID:        r.ID,
		UserID:    r.UserID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Status:    member.Status(r.Status),
		CreatedAt: utc(r.CreatedAt),
	}
}

func (r associationMemberRow) toMember() member.AssociationMember {
	return member.AssociationMember{Profile: r.toProfile(), AssociationID: r.AssociationID}
}

func (r schoolMemberRow) toMember() member.SchoolMember {
	interests := make([]string, 0)
	if r.Interests != "" {
		interests = strings.Split(r.Interests, ",")
	}
	return member.SchoolMember{
		Profile:       r.toProfile(),
		SchoolID:      r.SchoolID,
		AcademicLevel: r.AcademicLevel,
		Interests:     interests,
	}
}

func (r schoolAdminRow) toMember() member.SchoolAdmin {
	return member.SchoolAdmin{Profile: r.toProfile(), SchoolID: r.SchoolID}
}

func profileArgs(p member.Profile) []interface{} {
	return []interface{}{p.ID, p.UserID, p.FirstName, p.LastName, p.Email, p.Phone, string(p.Status), p.CreatedAt}
}

func memberTable(kind member.Kind) (string, error) {
	switch kind {
	case member.KindAssociation:
		return "association_members", nil
	case member.KindSchool:
		return "school_members", nil
	case member.KindSchoolAdmin:
		return "school_admins", nil
	default:
		return "", member.ErrUnknownKind
	}
}

type memberRepository struct {
	baseRepository
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db core.DB) member.Repository {
	return &memberRepository{baseRepository{db: db}}
}

func (repo *memberRepository) createOrganization(ctx context.Context, table string, org *organizationRow, exec []core.DBExecutor) error {
	org.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO "+table+" (id, name, created_at) VALUES (?, ?, ?)",
		org.ID, org.Name, org.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.NewValidationError(member.ErrOrganizationExists, core.FieldError{
				Field: "name",
				Error: member.ErrOrganizationExists.Error(),
			})
		}
		return errors.Wrapf(err, "inserting into %s", table)
	}
	return nil
}

func (repo *memberRepository) getOrganization(ctx context.Context, table, id string, notFound error, exec []core.DBExecutor) (organizationRow, error) {
	var row organizationRow
	if err := get(ctx, repo.executor(exec), &row, "SELECT id, name, created_at FROM "+table+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return row, notFound
		}
		return row, errors.Wrapf(err, "selecting from %s", table)
	}
	row.CreatedAt = utc(row.CreatedAt)
	return row, nil
}

func (repo *memberRepository) CreateAssociation(ctx context.Context, asso member.Association, exec ...core.DBExecutor) (member.Association, error) {
	row := organizationRow{Name: asso.Name, CreatedAt: asso.CreatedAt}
	if err := repo.createOrganization(ctx, "associations", &row, exec); err != nil {
		return member.Association{}, err
	}
	asso.ID = row.ID
	return asso, nil
}

func (repo *memberRepository) GetAssociation(ctx context.Context, id string, exec ...core.DBExecutor) (member.Association, error) {
	row, err := repo.getOrganization(ctx, "associations", id, member.ErrAssociationNotFound, exec)
	if err != nil {
		return member.Association{}, err
	}
	return member.Association(row), nil
}

func (repo *memberRepository) CreateSchool(ctx context.Context, school member.School, exec ...core.DBExecutor) (member.School, error) {
	row := organizationRow{Name: school.Name, CreatedAt: school.CreatedAt}
	if err := repo.createOrganization(ctx, "schools", &row, exec); err != nil {
		return member.School{}, err
	}
	school.ID = row.ID
	return school, nil
}

func (repo *memberRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (member.School, error) {
	row, err := repo.getOrganization(ctx, "schools", id, member.ErrSchoolNotFound, exec)
	if err != nil {
		return member.School{}, err
	}
	return member.School(row), nil
}

// Association members

func (repo *memberRepository) CreateAssociationMember(ctx context.Context, am member.AssociationMember, exec ...core.DBExecutor) (member.AssociationMember, error) {
	am.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO association_members ("+profileColumns+", association_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		append(profileArgs(am.Profile), am.AssociationID)...,
	)
	return am, errors.Wrap(err, "inserting association member")
}

func (repo *memberRepository) GetAssociationMember(ctx context.Context, id string, exec ...core.DBExecutor) (member.AssociationMember, error) {
	var row associationMemberRow
	err := get(ctx, repo.executor(exec), &row,
		"SELECT "+profileColumns+", association_id FROM association_members WHERE id = ?", id)
	if err != nil {
		if isNoRows(err) {
			return member.AssociationMember{}, member.ErrNotFound
		}
		return member.AssociationMember{}, errors.Wrap(err, "selecting association member")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QueryAssociationMembers(ctx context.Context, associationID string, exec ...core.DBExecutor) ([]member.AssociationMember, error) {
	var rows []associationMemberRow
	err := selectAll(ctx, repo.executor(exec), &rows,
		"SELECT "+profileColumns+", association_id FROM association_members WHERE association_id = ? ORDER BY last_name, first_name",
		associationID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting association members")
	}
	members := make([]member.AssociationMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

// School members

func (repo *memberRepository) CreateSchoolMember(ctx context.Context, sm member.SchoolMember, exec ...core.DBExecutor) (member.SchoolMember, error) {
	sm.ID = uuid.NewString()
	if sm.Interests == nil {
		sm.Interests = make([]string, 0)
	}
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO school_members ("+profileColumns+", school_id, academic_level, interests) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		append(profileArgs(sm.Profile), sm.SchoolID, sm.AcademicLevel, strings.Join(sm.Interests, ","))...,
	)
	return sm, errors.Wrap(err, "inserting school member")
}

func (repo *memberRepository) GetSchoolMember(ctx context.Context, id string, exec ...core.DBExecutor) (member.SchoolMember, error) {
	var row schoolMemberRow
	err := get(ctx, repo.executor(exec), &row,
		"SELECT "+profileColumns+", school_id, academic_level, interests FROM school_members WHERE id = ?", id)
	if err != nil {
		if isNoRows(err) {
			return member.SchoolMember{}, member.ErrNotFound
		}
		return member.SchoolMember{}, errors.Wrap(err, "selecting school member")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QuerySchoolMembers(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]member.SchoolMember, error) {
	var rows []schoolMemberRow
	err := selectAll(ctx, repo.executor(exec), &rows,
		"SELECT "+profileColumns+", school_id, academic_level, interests FROM school_members WHERE school_id = ? ORDER BY last_name, first_name",
		schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting school members")
	}
	members := make([]member.SchoolMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

// School admins

func (repo *memberRepository) CreateSchoolAdmin(ctx context.Context, sa member.SchoolAdmin, exec ...core.DBExecutor) (member.SchoolAdmin, error) {
	sa.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO school_admins ("+profileColumns+", school_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		append(profileArgs(sa.Profile), sa.SchoolID)...,
	)
	return sa, errors.Wrap(err, "inserting school admin")
}

func (repo *memberRepository) GetSchoolAdmin(ctx context.Context, id string, exec ...core.DBExecutor) (member.SchoolAdmin, error) {
	var row schoolAdminRow
	err := get(ctx, repo.executor(exec), &row,
		"SELECT "+profileColumns+", school_id FROM school_admins WHERE id = ?", id)
	if err != nil {
		if isNoRows(err) {
			return member.SchoolAdmin{}, member.ErrNotFound
		}
		return member.SchoolAdmin{}, errors.Wrap(err, "selecting school admin")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QuerySchoolAdmins(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]member.SchoolAdmin, error) {
	var rows []schoolAdminRow
	err := selectAll(ctx, repo.executor(exec), &rows,
		"SELECT "+profileColumns+", school_id FROM school_admins WHERE school_id = ? ORDER BY last_name, first_name",
		schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting school admins")
	}
	admins := make([]member.SchoolAdmin, 0, len(rows))
	for _, r := range rows {
		admins = append(admins, r.toMember())
	}
	return admins, nil
}

// Any kind

func (repo *memberRepository) GetProfile(ctx context.Context, kind member.Kind, id string, exec ...core.DBExecutor) (member.Profile, error) {
	table, err := memberTable(kind)
	if err != nil {
		return member.Profile{}, err
	}
	var row profileRow
	if err = get(ctx, repo.executor(exec), &row, "SELECT "+profileColumns+" FROM "+table+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return member.Profile{}, member.ErrNotFound
		}
		return member.Profile{}, errors.Wrapf(err, "selecting from %s", table)
	}
	return row.toProfile(), nil
}

func (repo *memberRepository) SetProfileStatus(ctx context.Context, kind member.Kind, id string, status member.Status, exec ...core.DBExecutor) error {
	table, err := memberTable(kind)
	if err != nil {
		return err
	}
	n, err := execAffected(ctx, repo.executor(exec), "UPDATE "+table+" SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return errors.Wrapf(err, "updating %s", table)
	}
	if n == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (repo *memberRepository) MembershipsForUser(ctx context.Context, userID string, exec ...core.DBExecutor) (member.Memberships, error) {
	ex := repo.executor(exec)
	ms := member.Memberships{
		AssociationMembers: make([]member.AssociationMember, 0),
		SchoolMembers:      make([]member.SchoolMember, 0),
		SchoolAdmins:       make([]member.SchoolAdmin, 0),
	}

	var amRows []associationMemberRow
	if err := selectAll(ctx, ex, &amRows,
		"SELECT "+profileColumns+", association_id FROM association_members WHERE user_id = ?", userID); err != nil {
		return ms, errors.Wrap(err, "selecting association members")
	}
	for _, r := range amRows {
		ms.AssociationMembers = append(ms.AssociationMembers, r.toMember())
	}

	var smRows []schoolMemberRow
	if err := selectAll(ctx, ex, &smRows,
		"SELECT "+profileColumns+", school_id, academic_level, interests FROM school_members WHERE user_id = ?", userID); err != nil {
		return ms, errors.Wrap(err, "selecting school members")
	}
	for _, r := range smRows {
		ms.SchoolMembers = append(ms.SchoolMembers, r.toMember())
	}

	var saRows []schoolAdminRow
	if err := selectAll(ctx, ex, &saRows,
		"SELECT "+profileColumns+", school_id FROM school_admins WHERE user_id = ?", userID); err != nil {
		return ms, errors.Wrap(err, "selecting school admins")
	}
	for _, r := range saRows {
		ms.SchoolAdmins = append(ms.SchoolAdmins, r.toMember())
	}
	return ms, nil
}
