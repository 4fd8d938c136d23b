package main

import (
	"context"
	"time"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
)

// approveVendor approves a pending vendor and grants its owner the vendor
// owner role.
func (cli *commandLine) approveVendor(slug string) error {
	ctx := context.Background()

	vnd, err := cli.vendorRepo.GetVendorBySlug(ctx, core.CleanString(slug, true /* lower */))
	if err != nil {
		return err
	}
	vnd.Status = vendor.StatusApproved
	vnd.UpdatedAt = time.Now().UTC()
	if _, err := cli.vendorRepo.UpdateVendor(ctx, vnd); err != nil {
		return err
	}

	owner, err := cli.usrRepo.GetUserByID(ctx, vnd.OwnerID)
	if err != nil {
		return err
	}
	for _, role := range owner.Roles {
		if role == user.RoleVendorOwner {
			return nil
		}
	}
	owner.Roles = append(owner.Roles, user.RoleVendorOwner)
	owner.UpdatedAt = time.Now().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, owner, nil)
	return err
}
