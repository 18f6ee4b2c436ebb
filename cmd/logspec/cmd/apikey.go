package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/solatis/logspec/internal/core/auth"
	"github.com/solatis/logspec/internal/core/config"
	"github.com/solatis/logspec/internal/core/db"
	"github.com/spf13/cobra"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys for rule reloads",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key",
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an API key",
	RunE:  runAPIKeyRevoke,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runAPIKeyList,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd, apikeyListCmd)

	apikeyCreateCmd.Flags().String("label", "", "human-readable key label")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign with (required when several are configured)")
	_ = apikeyCreateCmd.MarkFlagRequired("label")

	apikeyRevokeCmd.Flags().String("id", "", "API key ID")
	_ = apikeyRevokeCmd.MarkFlagRequired("id")
}

// openKeyStore opens the database and an authenticator over the configured secrets.
func openKeyStore() (*auth.Authenticator, map[string][]byte, func(), error) {
	if dbURL == "" {
		return nil, nil, nil, fmt.Errorf("--db-url required")
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	conn, queries, err := db.OpenAndMigrate(dbURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries), secrets, func() { conn.Close() }, nil
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	secretID, _ := cmd.Flags().GetString("secret-id")

	a, secrets, closeDB, err := openKeyStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if secretID == "" {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		switch len(ids) {
		case 0:
			return fmt.Errorf("no HMAC secrets configured (set LS_HMAC_SECRET environment variable)")
		case 1:
			secretID = ids[0]
		default:
			return fmt.Errorf("--secret-id required, configured: %s", strings.Join(ids, ", "))
		}
	}

	issued, err := a.IssueKey(secretID, label)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:  %s\n", issued.ID)
	fmt.Fprintf(out, "key: %s\n", issued.Key)
	fmt.Fprintln(cmd.ErrOrStderr(), "Store the key now; it cannot be shown again.")
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")

	a, _, closeDB, err := openKeyStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := a.RevokeKey(id); err != nil {
		return fmt.Errorf("revoke %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", id)
	return nil
}

func runAPIKeyList(cmd *cobra.Command, args []string) error {
	a, _, closeDB, err := openKeyStore()
	if err != nil {
		return err
	}
	defer closeDB()

	keys, err := a.ListKeys()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSECRET\tCREATED\tLAST USED\tREVOKED")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			k.ID, k.Label, k.SecretID,
			k.CreatedAt.Format("2006-01-02 15:04"),
			nullTime(k.LastUsedAt.Valid, k.LastUsedAt.Time.Format("2006-01-02 15:04")),
			nullTime(k.RevokedAt.Valid, k.RevokedAt.Time.Format("2006-01-02 15:04")),
		)
	}
	return tw.Flush()
}

func nullTime(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}
