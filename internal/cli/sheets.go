package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryklein/sheetsync/internal/models"
	"github.com/aryklein/sheetsync/internal/repositories/sheets"
)

func newAddCommand(app *App) *cobra.Command {
	var (
		name     string
		system   string
		payload  string
		imageURL string
		isPublic bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a character sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPayloadArg(payload)
			if err != nil {
				return err
			}

			sheet, err := app.repos.Sheets.Create(cmd.Context(), app.cfg.OwnerID, models.SheetInput{
				SystemID: system,
				Name:     name,
				Payload:  p,
				ImageURL: imageURL,
				IsPublic: isPublic,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), sheet.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "character name")
	cmd.Flags().StringVar(&system, "system", "", "game system id (e.g. dnd5e)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "sheet document as JSON, or @file to read it from a file")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "portrait image URL")
	cmd.Flags().BoolVar(&isPublic, "public", false, "mark the sheet as shareable")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("system")

	return cmd
}

func newListCommand(app *App) *cobra.Command {
	var (
		class    string
		minLevel int
		maxLevel int
		search   string
		sortBy   string
		desc     bool
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List character sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := sheets.ListFilter{
				Class:        class,
				NameContains: search,
				SortBy:       sheets.SortKey(sortBy),
				SortDesc:     desc,
				Limit:        limit,
				Offset:       offset,
			}
			if cmd.Flags().Changed("min-level") {
				filter.MinLevel = &minLevel
			}
			if cmd.Flags().Changed("max-level") {
				filter.MaxLevel = &maxLevel
			}

			items, total, err := app.repos.Sheets.List(cmd.Context(), app.cfg.OwnerID, filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSYSTEM\tUPDATED")
			for i := range items {
				s := &items[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.ID, s.Name, s.SystemID, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d sheet(s)\n", len(items), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "filter by character class")
	cmd.Flags().IntVar(&minLevel, "min-level", 0, "minimum character level")
	cmd.Flags().IntVar(&maxLevel, "max-level", 0, "maximum character level")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive name substring")
	cmd.Flags().StringVar(&sortBy, "sort", string(sheets.SortByName), "sort key: name, level, updated_at")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	return cmd
}

func newGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one character sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := app.repos.Sheets.GetByID(cmd.Context(), args[0], app.cfg.OwnerID)
			if err != nil {
				return err
			}
			return printSheet(cmd, sheet)
		},
	}
}

func newUpdateCommand(app *App) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Apply a JSON merge patch to a sheet's document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := readPayloadArg(payload)
			if err != nil {
				return err
			}

			sheet, err := app.repos.Sheets.Update(cmd.Context(), args[0], app.cfg.OwnerID, patch)
			if err != nil {
				return err
			}
			return printSheet(cmd, sheet)
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "patch as JSON, or @file to read it from a file")
	_ = cmd.MarkFlagRequired("payload")

	return cmd
}

func newDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a character sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.repos.Sheets.Delete(cmd.Context(), args[0], app.cfg.OwnerID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func printSheet(cmd *cobra.Command, s *models.Sheet) error {
	doc, err := s.Payload.Bytes()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:      %s\n", s.ID)
	fmt.Fprintf(out, "Name:    %s\n", s.Name)
	fmt.Fprintf(out, "System:  %s\n", s.SystemID)
	if s.ImageURL != "" {
		fmt.Fprintf(out, "Image:   %s\n", s.ImageURL)
	}
	fmt.Fprintf(out, "Public:  %t\n", s.IsPublic)
	fmt.Fprintf(out, "Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Payload: %s\n", doc)
	return nil
}

// readPayloadArg parses a JSON document given inline or, with a leading @,
// from a file.
func readPayloadArg(arg string) (models.Payload, error) {
	if arg == "" {
		return models.Payload{}, nil
	}

	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		raw = data
	}

	p, err := models.ParsePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}
