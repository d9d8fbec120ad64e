package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"acta-go/internal/app"
	"acta-go/internal/encryption"
)

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the encrypted archive of signatures and actas",
}

var archiveInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return errors.New("archive keys already exist")
		}

		pass, err := app.ReadSecret(os.Stdin, os.Stderr, "Passphrase: ")
		if err != nil {
			return err
		}
		again, err := app.ReadSecret(os.Stdin, os.Stderr, "Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return errors.New("passphrases do not match")
		}
		if err := enc.Setup(pass); err != nil {
			return err
		}

		fmt.Println("Archive keys created.")
		if age, ok := enc.(*encryption.AgeEncryptor); ok {
			if r, err := age.Recipient(); err == nil {
				fmt.Printf("Recipient: %s\n", r)
			}
		}
		return nil
	},
}

var archiveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the vault and the journal snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "archive status", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.ValidateVault(ctx); err != nil {
			return fmt.Errorf("vault %s: %w", a.Config().Vault.Name, err)
		}
		version, err := a.Archive().SnapshotVersion(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Vault:    %s (%s) ok\n", a.Config().Vault.Name, a.Config().Vault.Type)
		fmt.Printf("Keys:     %v\n", a.Encryptor().IsConfigured())
		fmt.Printf("Snapshot: %d\n", version)
		return nil
	},
}

var archiveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Download generated actas into the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "archive run", args)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.RunArchive(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Archived %d acta(s), %d failed\n", rep.Archived, rep.Failed)
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled handovers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "archive list", args)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Archive().List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No handovers recorded.")
			return nil
		}

		for _, h := range list {
			acta := "pending"
			if h.ActaChecksum != "" {
				acta = h.ActaChecksum
			}
			fmt.Printf("%s  %-13s  %-20s %-6s  acta:%s\n",
				h.SubmittedAt.Format("2006-01-02 15:04"),
				h.ProcessType,
				h.Project,
				h.Number,
				acta,
			)
			for _, sum := range h.SignatureChecksums {
				fmt.Printf("    firma:%s\n", sum)
			}
		}
		return nil
	},
}

var archiveGetCmd = &cobra.Command{
	Use:   "get CHECKSUM",
	Short: "Decrypt an archived signature or acta",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "archive get", args)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := app.ReadSecret(os.Stdin, os.Stderr, "Passphrase: ")
		if err != nil {
			return err
		}
		dec, err := a.Encryptor().Unlock(pass)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return a.Archive().Get(cmd.Context(), args[0], dec, w)
	},
}

var archiveJournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Restore this device's journal from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		pass, err := app.ReadSecret(os.Stdin, os.Stderr, "Passphrase: ")
		if err != nil {
			return err
		}

		version, err := app.RestoreJournal(cmd.Context(), cfg, pass, output, force)
		if err != nil {
			return err
		}
		fmt.Printf("Journal restored at version %d\n", version)
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveInitCmd)
	archiveCmd.AddCommand(archiveStatusCmd)
	archiveCmd.AddCommand(archiveRunCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveListCmd.Flags().IntP("limit", "n", 50, "Maximum number of handovers to show")
	archiveCmd.AddCommand(archiveGetCmd)
	archiveGetCmd.Flags().StringP("output", "o", "", "Write to a new file instead of stdout")
	archiveCmd.AddCommand(archiveJournalCmd)
	archiveJournalCmd.Flags().StringP("output", "o", "", "Write to this file instead of the configured journal")
	archiveJournalCmd.Flags().Bool("force", false, "Replace an existing journal file")
}
