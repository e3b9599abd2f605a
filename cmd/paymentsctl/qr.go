package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/order-payments/pkg/emvqr"
)

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Build and inspect Pix BR Code payloads",
	}
	cmd.AddCommand(qrDecodeCmd())
	cmd.AddCommand(qrBuildCmd())
	return cmd
}

func qrDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [payload]",
		Short: "Verify the CRC and print the fields of a Pix payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pix, err := emvqr.DecodePix(args[0])
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"key":           pix.Key,
				"merchant_name": pix.MerchantName,
				"merchant_city": pix.MerchantCity,
				"txid":          pix.TxID,
				"reusable":      pix.Reusable,
			}
			if pix.Description != "" {
				out["description"] = pix.Description
			}
			if pix.PostalCode != "" {
				out["postal_code"] = pix.PostalCode
			}
			if !pix.Amount.IsZero() {
				out["amount"] = pix.Amount.StringFixed(2)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func qrBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render a Pix payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			key, _ := flags.GetString("key")
			name, _ := flags.GetString("name")
			city, _ := flags.GetString("city")
			txid, _ := flags.GetString("txid")
			description, _ := flags.GetString("description")
			rawAmount, _ := flags.GetString("amount")

			var amount decimal.Decimal
			if rawAmount != "" {
				parsed, err := decimal.NewFromString(rawAmount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
				}
				amount = parsed
			}

			payload, err := emvqr.BuildPix(emvqr.Pix{
				Key:          key,
				Description:  description,
				MerchantName: name,
				MerchantCity: city,
				Amount:       amount,
				TxID:         txid,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}

	cmd.Flags().String("key", "", "Pix key of the receiver")
	cmd.Flags().String("name", "", "Merchant name (max 25)")
	cmd.Flags().String("city", "", "Merchant city (max 15)")
	cmd.Flags().String("amount", "", "Amount, e.g. 30.00; omit for open amount")
	cmd.Flags().String("txid", "", "Transaction id; *** when omitted")
	cmd.Flags().String("description", "", "Free text shown to the payer")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
