package main

import (
	"context"
	"fmt"

	"github.com/trezcool/fourmis/core/member"
)

// addOrg creates an association or a school, and invites its first manager when an email is given.
func (cli *commandLine) addOrg(kind, name string, manager member.Invitation) error {
	ctx := context.Background()

	org := member.NewOrganization{Name: name}
	if err := cli.validate.Struct(org); err != nil {
		return cli.describe(err)
	}
	if manager.Email != "" {
		if err := manager.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return cli.describe(err)
		}
	}

	switch member.Kind(kind) {
	case member.KindAssociation:
		asso, err := cli.memberSvc.CreateAssociation(ctx, org.Name)
		if err != nil {
			return err
		}
		fmt.Printf("association %q created: %s\n", asso.Name, asso.ID)
		if manager.Email == "" {
			return nil
		}
		am, err := cli.memberSvc.InviteAssociationMember(ctx, asso.ID, manager)
		if err != nil {
			return err
		}
		fmt.Printf("%s invited: %s\n", am.Email, am.ID)
	case member.KindSchool:
		school, err := cli.memberSvc.CreateSchool(ctx, org.Name)
		if err != nil {
			return err
		}
		fmt.Printf("school %q created: %s\n", school.Name, school.ID)
		if manager.Email == "" {
			return nil
		}
		sa, err := cli.memberSvc.InviteSchoolAdmin(ctx, school.ID, manager)
		if err != nil {
			return err
		}
		fmt.Printf("%s invited: %s\n", sa.Email, sa.ID)
	default:
		return fmt.Errorf("unknown organization kind %q", kind)
	}
	return nil
}
