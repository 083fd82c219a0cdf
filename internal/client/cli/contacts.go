package cli

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/spf13/cobra"
)

// flagContact is a ContactSource filled from command flags. A contact with
// no fields counts as a cancelled pick.
type flagContact struct {
	info models.ContactInfo
}

var _ models.ContactSource = (*flagContact)(nil)

func (f *flagContact) Pick(context.Context) (*models.ContactInfo, error) {
	if f.info == (models.ContactInfo{}) {
		return nil, nil
	}
	c := f.info
	return &c, nil
}

func (f *flagContact) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.info.DisplayName, "name", "", "contact name")
	fl.StringVar(&f.info.Organization, "org", "", "organization")
	fl.StringVar(&f.info.Phone, "phone", "", "phone number")
	fl.StringVar(&f.info.Email, "email", "", "email address")
	fl.StringVar(&f.info.Address, "address", "", "postal address")
}

func newVetFromContactCmd(rt *runtime) *cobra.Command {
	src := &flagContact{}
	cmd := &cobra.Command{
		Use:   "vet-from-contact <uuid>",
		Short: "Fill the veterinarian fields from a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt.app.records.CopyVetFromContact(cmd.Context(), args[0], src)
			if !savedLocally(err) {
				return err
			}
			rt.app.printf("Vet details updated for %s\n", r.DisplayName())
			return err
		},
	}
	src.bind(cmd)
	return cmd
}

func newAddContactCmd(rt *runtime) *cobra.Command {
	src := &flagContact{}
	cmd := &cobra.Command{
		Use:   "add-contact <uuid>",
		Short: "Add an emergency contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt.app.records.AddEmergencyContactFrom(cmd.Context(), args[0], src)
			if !savedLocally(err) {
				return err
			}
			rt.app.printf("Emergency contact added to %s\n", r.DisplayName())
			return err
		},
	}
	src.bind(cmd)
	return cmd
}
