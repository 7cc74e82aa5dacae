package commands

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/accounts"
	"github.com/vakspot/vakspot/internal/database"
	vmail "github.com/vakspot/vakspot/internal/mail"
)

type createAdminOptions struct {
	email    string
	name     string
	password string
}

// NewCreateAdminCmd creates the create-admin command
func NewCreateAdminCmd() *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account.

Admins cannot sign up over HTTP. Missing values are prompted for on a
terminal; the password can also come from VAKSPOT_ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("VAKSPOT_ADMIN_PASSWORD")
			}
			if err := promptMissing(opts); err != nil {
				return err
			}

			db, _, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			return runCreateAdmin(cmd.Context(), db, log, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&opts.name, "name", "Admin", "Display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "Admin password (min 8 characters)")

	return cmd
}

// promptMissing asks for the email and password when they were not passed in
func promptMissing(opts *createAdminOptions) error {
	interactive := isTerminal()

	if opts.email == "" {
		if !interactive {
			return fmt.Errorf("email is required in non-interactive mode (use --email)")
		}
		prompt := promptui.Prompt{
			Label: "Email",
			Validate: func(input string) error {
				_, err := mail.ParseAddress(input)
				return err
			},
		}
		email, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("email prompt cancelled: %w", err)
		}
		opts.email = email
	}

	if opts.password == "" {
		if !interactive {
			return fmt.Errorf("password is required in non-interactive mode (use --password or VAKSPOT_ADMIN_PASSWORD)")
		}
		fmt.Print("Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		opts.password = string(bytePassword)
	}

	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

func runCreateAdmin(ctx context.Context, db *gorm.DB, log zerolog.Logger, opts *createAdminOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Operator-created accounts get no welcome mail
	service := accounts.NewService(db, vmail.NewDirectNotifier(vmail.NopSender{}, log), "", log)

	user, err := service.CreateAdmin(ctx, opts.email, opts.password, opts.name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created admin %s (%s)\n", user.Email, user.ID)
	return nil
}
