package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/cpg/internal/session"
)

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Edit or remove products of a session under review",
	}

	cmd.AddCommand(newProductEditCmd())
	cmd.AddCommand(newProductDeleteCmd())
	return cmd
}

func newProductEditCmd() *cobra.Command {
	var (
		configPath string
		user       string
		file       string
		fileName   string
	)

	cmd := &cobra.Command{
		Use:   "edit <session-id> <channel> <key>",
		Short: "Replace a product's text",
		Long: `Replaces the text of one product with the contents of --file, or stdin when
--file is "-" or omitted. The product keeps its key and period type.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := parseChannel(args[1])
			if err != nil {
				return err
			}
			text, err := readText(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if text == "" {
				return fmt.Errorf("refusing to save empty product text")
			}
			key := args[2]
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				cur, ok := s.ProdData().Get(ch, key)
				if !ok {
					return fmt.Errorf("%s %s: %w", ch, key, session.ErrNoSuchProduct)
				}
				p := cur.Clone()
				p.Text = text
				if fileName != "" {
					p.FileName = fileName
				}
				if err := s.SaveModifiedProduct(ctx, ch, key, p, user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s product %s (%d bytes)\n", ch, key, len(text))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the edit")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "file holding the new text")
	cmd.Flags().StringVar(&fileName, "file-name", "", "new NWR file name")
	return cmd
}

func readText(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newProductDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <session-id> <channel> <key>",
		Short: "Remove a product so it is not sent",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := parseChannel(args[1])
			if err != nil {
				return err
			}
			key := args[2]
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				if err := s.DeleteProduct(ctx, ch, key); err != nil {
					return err
				}
				left := 0
				if set := s.ProdData().Set(ch); set != nil {
					left = set.Len()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s product %s, %d left\n", ch, key, left)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	return cmd
}
