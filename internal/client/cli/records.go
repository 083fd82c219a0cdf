package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/codec"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/spf13/cobra"
)

func newRecordsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		Short:   "Manage local health records",
	}
	cmd.AddCommand(
		newRecordsListCmd(rt),
		newRecordsShowCmd(rt),
		newRecordsCreateCmd(rt),
		newRecordsUpdateCmd(rt),
		newRecordsDeleteCmd(rt),
		newAddEntryCmd(rt),
		newRemoveEntryCmd(rt),
		newKindsCmd(),
		newVetFromContactCmd(rt),
		newAddContactCmd(rt),
	)
	return cmd
}

func newRecordsListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := rt.app.records.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				rt.app.printf("No records.\n")
				return nil
			}
			tw := tabwriter.NewWriter(rt.app.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "UUID\tNAME\tTYPE\tCLOUD\tSHARED\tUPDATED")
			for _, r := range recs {
				kind := "human"
				if r.IsPet {
					kind = "pet"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.UUID, r.DisplayName(), kind,
					yesNo(r.Cloud.IsCloudEnabled), yesNo(r.Cloud.IsSharingEnabled),
					r.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newRecordsShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <uuid>",
		Short: "Print a record as its cloud document fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt.app.records.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fields, err := codec.Encode(r)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(fields, "", "  ")
			if err != nil {
				return err
			}
			rt.app.printf("%s\n", b)
			rt.app.printf("cloud: %s, sharing: %s\n", yesNo(r.Cloud.IsCloudEnabled), yesNo(r.Cloud.IsSharingEnabled))
			if r.Cloud.CloudRecordName != nil {
				rt.app.printf("record name: %s\n", *r.Cloud.CloudRecordName)
			}
			if r.Cloud.ParticipantsSummary != "" {
				rt.app.printf("participants: %s\n", r.Cloud.ParticipantsSummary)
			}
			return nil
		},
	}
}

func newRecordsCreateCmd(rt *runtime) *cobra.Command {
	var pet bool
	cmd := &cobra.Command{
		Use:   "create [field=value ...]",
		Short: "Create a human or pet record",
		Example: "  phr records create personalGivenName=Ann personalFamilyName=Lee\n" +
			"  phr records create --pet personalName=Rex ownerName=Ann",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := ParsePairs(args)
			if err != nil {
				return err
			}
			r, err := rt.app.records.Create(cmd.Context(), pet, func(r *models.MedicalRecord) error {
				return applyProfile(r, pairs)
			})
			if err != nil {
				return err
			}
			rt.app.printf("Created %s (%s)\n", r.DisplayName(), r.UUID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pet, "pet", false, "create a pet record")
	return cmd
}

func newRecordsUpdateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "update <uuid> field=value [field=value ...]",
		Short: "Set profile fields; an empty value clears the field",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := ParsePairs(args[1:])
			if err != nil {
				return err
			}
			r, err := rt.app.records.Update(cmd.Context(), args[0], func(r *models.MedicalRecord) error {
				return applyProfile(r, pairs)
			})
			if !savedLocally(err) {
				return err
			}
			rt.app.printf("Updated %s\n", r.DisplayName())
			return err
		},
	}
}

func newRecordsDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Delete a record here and in the cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()
			if err := rt.app.records.Delete(ctx, args[0]); err != nil {
				return err
			}
			rt.app.printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "kinds",
		Short:       "List entry kinds accepted by add-entry",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, c := range models.Collections {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", c.Kind(), c.Field())
			}
		},
	}
}

// applyProfile sets profile fields by their document names.
func applyProfile(r *models.MedicalRecord, pairs map[string]string) error {
	known := codec.ProfileFields()
	b, err := json.Marshal(r.Profile)
	if err != nil {
		return err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range pairs {
		if !slices.Contains(known, k) {
			return fmt.Errorf("unknown field %q", k)
		}
		if k == "isPet" {
			return fmt.Errorf("isPet is fixed at creation, use --pet")
		}
		if strings.TrimSpace(v) == "" {
			delete(m, k)
			continue
		}
		tv, err := typedValue(k, v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		m[k] = tv
	}
	if b, err = json.Marshal(m); err != nil {
		return err
	}
	var p models.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	r.Profile = p
	return nil
}
