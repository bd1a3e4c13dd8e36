package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/app"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
)

var (
	reconcileLimit int
	resolveNote    string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "オンチェーンとオフチェーンの照合エントリを扱う",
}

var reconcileListCmd = &cobra.Command{
	Use:   "list",
	Short: "未解消の照合エントリを表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			entries, err := a.Services.Reconciliation.Pending(ctx, reconcileLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(entries)
			}
			printEntries(entries)
			return nil
		})
	},
}

var reconcileResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "照合エントリを手動対応済みにする",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			entry, err := a.Services.Reconciliation.Resolve(ctx, args[0], resolveNote)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(entry)
			}
			fmt.Printf("%s を解消済みにしました\n", entry.ID)
			return nil
		})
	},
}

var reconcileRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "記録に失敗した購入の再記録を試みる",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Services.Reconciliation.Retry(ctx, reconcileLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(report)
			}
			fmt.Printf("resolved=%d manual=%d failed=%d\n", report.Resolved, report.Manual, report.Failed)
			return nil
		})
	},
}

func init() {
	reconcileCmd.PersistentFlags().IntVar(&reconcileLimit, "limit", 50, "処理する最大件数")
	reconcileResolveCmd.Flags().StringVar(&resolveNote, "note", "", "対応内容のメモ")

	reconcileCmd.AddCommand(reconcileListCmd)
	reconcileCmd.AddCommand(reconcileResolveCmd)
	reconcileCmd.AddCommand(reconcileRetryCmd)
}

// withApp はワーカーを起動せずにアプリケーションを組み立てて fn を実行する
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	if cfg.App.StoreDriver != "postgres" {
		return fmt.Errorf("reconcile は STORE_DRIVER=postgres でのみ使えます")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printEntries(entries []*reconciliation.Entry) {
	if len(entries) == 0 {
		fmt.Println("未解消の照合エントリはありません")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tEVENT\tBUYER\tTX\tATTEMPTS\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			e.ID, e.Kind, e.Status, e.EventID, e.BuyerID, e.TxHash, e.Attempts,
			e.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
