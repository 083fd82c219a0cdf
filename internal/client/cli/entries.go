package cli

import (
	"encoding/json"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/spf13/cobra"
)

func newAddEntryCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "add-entry <uuid> <kind> field=value [field=value ...]",
		Short:   "Append a child entry such as a weight or a vaccination",
		Example: "  phr records add-entry <uuid> weight date=2025-01-02 weightKg=71.5 comment=morning",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := entryBody(args[2:])
			if err != nil {
				return err
			}
			id, err := rt.app.records.AddEntry(cmd.Context(), args[0], models.ChildKind(args[1]), body)
			if !savedLocally(err) {
				return err
			}
			rt.app.printf("Added %s entry %s\n", args[1], id)
			return err
		},
	}
}

func newRemoveEntryCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-entry <uuid> <kind> <entry-uuid>",
		Short: "Remove a child entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app.records.RemoveEntry(cmd.Context(), args[0], models.ChildKind(args[1]), args[2]); err != nil {
				return err
			}
			rt.app.printf("Removed %s entry %s\n", args[1], args[2])
			return nil
		},
	}
}

func entryBody(args []string) (json.RawMessage, error) {
	pairs, err := ParsePairs(args)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(pairs))
	for k, v := range pairs {
		tv, err := typedValue(k, v)
		if err != nil {
			return nil, err
		}
		m[k] = tv
	}
	return json.Marshal(m)
}
