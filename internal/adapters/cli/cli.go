package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"retail-pos/internal/app"
	"retail-pos/internal/core"
)

const usage = `Available: products, balances, history <product-id> [page], summary [start] [end],
           sales [start] [end], verify-ledger, create-user <username> "<full name>" [role]`

// Run executes a one-shot CLI command and exits.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string) {
	if len(args) == 0 {
		log.Fatalf("No command given\n%s", usage)
	}
	out := os.Stdout

	switch args[0] {
	case "products", "prod":
		req := app.ListProductsRequest{}
		if len(args) > 1 {
			req.Category = args[1]
		}
		result, err := svc.ListProducts(ctx, req)
		if err != nil {
			log.Fatalf("Failed to list products: %v", err)
		}
		printProducts(out, result.Products)

	case "balances", "bal":
		balances, err := svc.GetCrateBalances(ctx)
		if err != nil {
			log.Fatalf("Failed to get crate balances: %v", err)
		}
		printBalances(out, balances)

	case "history", "hist":
		if len(args) < 2 {
			log.Fatal("Usage: app history <product-id> [page]")
		}
		productID, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid product id %q", args[1])
		}
		page := 1
		if len(args) > 2 {
			if page, err = strconv.Atoi(args[2]); err != nil {
				log.Fatalf("Invalid page %q", args[2])
			}
		}
		result, err := svc.GetCrateHistory(ctx, productID, page, core.DefaultPageLimit)
		if err != nil {
			log.Fatalf("Failed to get crate history: %v", err)
		}
		printHistory(out, result)

	case "summary", "sum":
		req := app.CrateSummaryRequest{}
		if len(args) > 1 {
			req.StartDate = args[1]
		}
		if len(args) > 2 {
			req.EndDate = args[2]
		}
		summary, err := svc.GetCrateSummary(ctx, req)
		if err != nil {
			log.Fatalf("Failed to get crate summary: %v", err)
		}
		printSummary(out, summary)

	case "sales":
		req := app.ListSalesRequest{Limit: core.MaxPageLimit}
		if len(args) > 1 {
			req.StartDate = args[1]
		}
		if len(args) > 2 {
			req.EndDate = args[2]
		}
		result, err := svc.ListSales(ctx, req)
		if err != nil {
			log.Fatalf("Failed to list sales: %v", err)
		}
		printSales(out, result)

	case "verify-ledger", "verify":
		result, err := svc.VerifyCrateLedger(ctx)
		if err != nil {
			log.Fatalf("Failed to verify crate ledger: %v", err)
		}
		printVerification(out, result)
		if result.Mismatches > 0 {
			os.Exit(1)
		}

	case "create-user":
		if len(args) < 3 {
			log.Fatal("Usage: app create-user <username> \"<full name>\" [role]  (password read from stdin)")
		}
		password, err := readPassword(os.Stdin)
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		req := app.CreateUserRequest{
			ActorRole: core.RoleAdmin,
			Username:  args[1],
			FullName:  args[2],
			Password:  password,
		}
		if len(args) > 3 {
			req.Role = args[3]
		}
		user, err := svc.CreateUser(ctx, req)
		if err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.Encode(user)

	default:
		log.Fatalf("Unknown command: %s\n%s", args[0], usage)
	}
}

// readPassword reads the first line of r.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printProducts(w io.Writer, products []core.Product) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-5s %-30s %-10s %12s %7s %6s\n", "ID", "NAME", "CATEGORY", "PRICE", "STOCK", "CRATES")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, p := range products {
		stock := strconv.Itoa(p.CurrentStock)
		if p.IsLowStock() {
			stock += "*"
		}
		crates := ""
		if p.HasCrateTracking {
			crates = "yes"
		}
		fmt.Fprintf(w, "  %-5d %-30s %-10s %12s %7s %6s\n",
			p.ID, truncate(p.Name, 30), p.Category, p.SellingPrice.StringFixed(2), stock, crates)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintln(w, "  * at or below minimum stock")
}

func printBalances(w io.Writer, balances []core.CrateBalance) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-58s\n", "CRATE BALANCES (owed to supplier)")
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-6s %-30s %8s  %-12s\n", "ID", "PRODUCT", "BALANCE", "UPDATED")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	total := 0
	for _, b := range balances {
		updated := "-"
		if b.LastUpdated != nil {
			updated = b.LastUpdated.Format(core.DateLayout)
		}
		fmt.Fprintf(w, "  %-6d %-30s %8d  %-12s\n", b.ProductID, truncate(b.ProductName, 30), b.CurrentBalance, updated)
		total += b.CurrentBalance
	}
	fmt.Fprintln(w, strings.Repeat("-", 62))
	fmt.Fprintf(w, "  %-37s %8d\n", "TOTAL", total)
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printHistory(w io.Writer, h *app.CrateHistoryResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  CRATE LEDGER : %s (#%d)\n", h.ProductName, h.ProductID)
	fmt.Fprintf(w, "  Balance      : %d\n", h.CurrentBalance)
	fmt.Fprintf(w, "  Page         : %d of %d (%d entries)\n",
		h.Pagination.CurrentPage, h.Pagination.TotalPages, h.Pagination.TotalItems)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-16s %-10s %5s %5s %7s  %s\n", "WHEN", "TYPE", "IN", "OUT", "BALANCE", "NOTES")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, e := range h.History {
		notes := ""
		if e.Notes != nil {
			notes = truncate(*e.Notes, 26)
		}
		fmt.Fprintf(w, "  %-16s %-10s %5d %5d %7d  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.TransactionType, e.CratesReceived, e.CratesReturned, e.Balance, notes)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

func printSummary(w io.Writer, s *core.CrateSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-74s\n", "CRATE SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-30s %9s %9s %9s %9s %6s\n", "PRODUCT", "RECEIVED", "RETURNED", "ADJUSTED", "BALANCE", "ROWS")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, r := range s.Summary {
		fmt.Fprintf(w, "  %-30s %9d %9d %9d %9d %6d\n",
			truncate(r.ProductName, 30), r.TotalReceived, r.TotalReturned, r.Adjustments, r.CurrentBalance, r.Records)
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-70s %6d\n", "TOTAL RECORDS", s.TotalRecords)
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

func printSales(w io.Writer, result *app.SaleListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-20s %-16s %-8s %12s %12s  %s\n", "RECEIPT", "WHEN", "PAYMENT", "TOTAL", "PROFIT", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, s := range result.Sales {
		status := ""
		if s.IsVoided {
			status = "VOID"
		}
		fmt.Fprintf(w, "  %-20s %-16s %-8s %12s %12s  %s\n",
			s.ReceiptNumber, s.CreatedAt.Format("2006-01-02 15:04"), s.PaymentMethod,
			s.TotalAmount.StringFixed(2), s.Profit.StringFixed(2), status)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %d of %d sales\n", len(result.Sales), result.Pagination.TotalItems)
}

func printVerification(w io.Writer, result *app.LedgerVerificationResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-30s %8s %8s %9s  %s\n", "PRODUCT", "ENTRIES", "STORED", "REPLAYED", "RESULT")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, c := range result.Checks {
		status := "ok"
		if !c.OK() {
			status = c.Problem
		}
		fmt.Fprintf(w, "  %-30s %8d %8d %9d  %s\n",
			truncate(c.ProductName, 30), c.Entries, c.StoredBalance, c.ReplayedBalance, status)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
	if result.Mismatches == 0 {
		fmt.Fprintf(w, "  All %d ledgers replay cleanly.\n", len(result.Checks))
	} else {
		fmt.Fprintf(w, "  %d of %d ledgers do not replay to their stored balance.\n", result.Mismatches, len(result.Checks))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
