package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/funnel/internal/phone"
)

var formatCmd = &cobra.Command{
	Use:   "format <number>",
	Short: "Format a phone number the way landing pages display it",
	Long: `Print a phone number in display form.

10 digits become (AAA) BBB-CCCC, 11 digits with a leading 1 become
+1 (AAA) BBB-CCCC; anything else is printed unchanged.

Examples:
  funnel format +18554690274
  funnel format 8554690274`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFormat(args[0])
	},
}

func runFormat(number string) error {
	fmt.Println(phone.Format(number))
	fmt.Println(phone.TelURI(number))
	return nil
}

func init() {
	RootCmd.AddCommand(formatCmd)
}
