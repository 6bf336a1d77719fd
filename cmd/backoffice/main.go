package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/activity"
	"boutique/backoffice/internal/apiclient"
	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/cache"
	"boutique/backoffice/internal/catalog"
	"boutique/backoffice/internal/config"
	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/grid"
	"boutique/backoffice/internal/history"
	"boutique/backoffice/internal/reconcile"
	"boutique/backoffice/internal/service"
	"boutique/backoffice/internal/session"
	"boutique/backoffice/internal/session/vault"
	"boutique/backoffice/internal/store"
	"boutique/backoffice/internal/store/memory"
	pgstore "boutique/backoffice/internal/store/postgres"
)

const usage = `usage: backoffice <command> [args]

commands:
  login USERNAME                 log in (password from BACKOFFICE_PASSWORD or stdin)
  logout                         forget the stored session
  whoami                         show the logged-in user
  stats                          dashboard counters
  feed                           recent activity
  sales-history [-o FILE] [FROM [TO]]
                                 sales grouped by day, optionally as a workbook
  expense-history [-o FILE] [FROM [TO]]
                                 expenses grouped by day, optionally as a workbook
  sell [flags] NAME=QTY[@PRICE]...
  expense [flags] DESC=AMOUNT...
  categories [NAME [DESCRIPTION]] list expense categories, or create one
  stock NAME [N|+N|-N]           show, set, raise or lower a product's stock
  out-of-stock                   sales recorded beyond stock
  import-products FILE           upload an Excel stock sheet
  export-sales [FROM [TO]]       download the sales report
  export-expenses [FROM [TO]]    download the expenses report
  invoice-pdf [-preview] ID      download an invoice as PDF
  journal [N]                    latest save batches
`

type app struct {
	cfg     config.Config
	client  *apiclient.Client
	svc     *service.Service
	logger  logrus.FieldLogger
	stdin   *bufio.Reader
	stdout  io.Writer
	// dir receives downloaded files; empty means the working directory.
	dir     string
	closers []func() error
}

func main() {
	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	logger := config.NewLogger(cfg)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer a.close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		notice := apperr.Describe(err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", notice.Title, notice.Message)
		if apperr.IsSessionExpired(err) {
			fmt.Fprintln(os.Stderr, "run `backoffice login USERNAME` first")
		}
		a.close()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, stdin: bufio.NewReader(os.Stdin), stdout: os.Stdout}

	var persister session.Persister
	if cfg.SessionFile != "" {
		persister = vault.NewFile(cfg.SessionFile, cfg.SessionPassphrase)
		logger.WithField("path", cfg.SessionFile).Debug("session: encrypted file")
	} else {
		logger.Debug("session: memory only")
	}
	sess := session.New(persister, session.WithLogger(logger))
	if err := sess.Hydrate(ctx); err != nil {
		logger.WithError(err).Warn("stored session could not be read, starting logged out")
	}
	sess.OnLogout(func(reason string) {
		logger.WithField("reason", reason).Info("session ended")
	})

	a.client = apiclient.New(cfg.APIBaseURL, sess,
		apiclient.WithTimeout(cfg.Timeout()),
		apiclient.WithLogger(logger),
	)

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(setupCtx); err != nil {
			logger.WithError(err).Warn("redis unavailable, catalog is not cached")
			_ = redisCache.Close()
		} else {
			catalogCache = redisCache
			a.closers = append(a.closers, redisCache.Close)
			logger.Debug("catalog cache: redis")
		}
	}

	journal, closeJournal, err := openJournal(setupCtx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if closeJournal != nil {
		a.closers = append(a.closers, closeJournal)
	}

	cat := catalog.New(a.client,
		catalog.WithCache(catalogCache, cfg.CatalogTTL()),
		catalog.WithKey(cfg.APIBaseURL),
		catalog.WithLogger(logger),
	)
	a.svc = service.New(a.client, cat,
		service.WithJournal(journal),
		service.WithStockCheckFailOpen(cfg.StockCheckFailOpen),
		service.WithLocation(cfg.Location()),
		service.WithLabeler(history.LabelerFor(cfg.DayLabelLocale)),
		service.WithFeedLimits(activity.Limits{
			Sales:    cfg.FeedSalesLimit,
			Expenses: cfg.FeedExpensesLimit,
			Invoices: cfg.FeedInvoicesLimit,
		}),
		service.WithLogger(logger),
	)
	return a, nil
}

// openJournal picks the postgres journal when databaseURL is set, creating
// its table, and the in-memory one otherwise. It never falls back to memory
// once a database was asked for.
func openJournal(ctx context.Context, databaseURL string, logger logrus.FieldLogger) (store.Journal, func() error, error) {
	if databaseURL == "" {
		logger.Debug("journal: in-memory")
		return memory.New(), nil, nil
	}
	pg, err := pgstore.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("create journal schema: %w", err)
	}
	logger.Debug("journal: postgres")
	return pg, pg.Close, nil
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.client.Logout(ctx)
		fmt.Fprintln(a.stdout, "logged out")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "stats":
		return a.stats(ctx)
	case "feed":
		return a.feed(ctx)
	case "sales-history":
		return a.salesHistory(ctx, args)
	case "expense-history":
		return a.expenseHistory(ctx, args)
	case "sell":
		return a.sell(ctx, args)
	case "expense":
		return a.expense(ctx, args)
	case "categories":
		return a.categories(ctx, args)
	case "stock":
		return a.stock(ctx, args)
	case "out-of-stock":
		return a.outOfStock(ctx)
	case "import-products":
		return a.importProducts(ctx, args)
	case "export-sales":
		return a.exportSales(ctx, args)
	case "export-expenses":
		return a.exportExpenses(ctx, args)
	case "invoice-pdf":
		return a.invoicePDF(ctx, args)
	case "journal":
		return a.journal(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: backoffice login USERNAME")
	}
	password := os.Getenv("BACKOFFICE_PASSWORD")
	if password == "" {
		fmt.Fprint(a.stdout, "password: ")
		line, err := a.stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	resp, err := a.client.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "logged in as %s\n", firstNonEmpty(resp.User.Username, args[0]))
	if a.cfg.SessionFile == "" {
		fmt.Fprintln(a.stdout, "BACKOFFICE_SESSION_FILE is not set; the session ends with this command")
	}
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	p, err := a.svc.Profile(ctx)
	if err != nil {
		return err
	}
	if p.Email != "" {
		fmt.Fprintf(a.stdout, "%s <%s>\n", p.Username, p.Email)
	} else {
		fmt.Fprintln(a.stdout, p.Username)
	}
	return nil
}

func (a *app) stats(ctx context.Context) error {
	s, err := a.svc.Dashboard(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "products\t%d\tactive %d\tlow stock %d\n", s.Products.Total, s.Products.Active, s.Products.LowStock)
	fmt.Fprintf(tw, "sales\t%d\trecent %d\t\n", s.Sales.Total, s.Sales.Recent)
	fmt.Fprintf(tw, "expenses\t%d\trecent %d\tamount %.2f\n", s.Expenses.Total, s.Expenses.Recent, s.Expenses.Amount)
	fmt.Fprintf(tw, "customers\t%d\trecent %d\t\n", s.Customers.Total, s.Customers.Recent)
	fmt.Fprintf(tw, "revenue\t%.2f\tnet %.2f\t\n", s.Revenue.Total, s.Revenue.Net)
	return tw.Flush()
}

func (a *app) feed(ctx context.Context) error {
	entries, err := a.svc.Feed(ctx, a.cfg.FeedMaxItems)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "no recent activity")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.TimeAgo, e.Title, e.Description)
	}
	return tw.Flush()
}

func (a *app) salesHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sales-history", flag.ContinueOnError)
	out := fs.String("o", "", "write the grouped history to this .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	params, err := rangeParams(fs.Args())
	if err != nil {
		return err
	}
	if *out != "" {
		return a.writeFile(*out, func(w io.Writer) error {
			return a.svc.WriteSalesHistory(ctx, params, w)
		})
	}
	groups, err := a.svc.SalesHistory(ctx, params)
	if err != nil {
		return err
	}
	return printGroups(a.stdout, groups, func(s domain.Sale) (string, string) {
		name := "Client anonyme"
		if s.CustomerName != nil && *s.CustomerName != "" {
			name = *s.CustomerName
		}
		return fmt.Sprintf("#%d %s", s.ID, name), s.TotalAmount
	})
}

func (a *app) expenseHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("expense-history", flag.ContinueOnError)
	out := fs.String("o", "", "write the grouped history to this .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	params, err := rangeParams(fs.Args())
	if err != nil {
		return err
	}
	if *out != "" {
		return a.writeFile(*out, func(w io.Writer) error {
			return a.svc.WriteExpenseHistory(ctx, params, w)
		})
	}
	groups, err := a.svc.ExpenseHistory(ctx, params)
	if err != nil {
		return err
	}
	return printGroups(a.stdout, groups, func(e domain.Expense) (string, string) {
		return e.Description, e.Amount
	})
}

func printGroups[T any](w io.Writer, groups []history.DayGroup[T], line func(T) (string, string)) error {
	if len(groups) == 0 {
		fmt.Fprintln(w, "nothing recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t\t\n", g.Label)
		for _, item := range g.Items {
			desc, amount := line(item)
			fmt.Fprintf(tw, "  %s\t%s\t\n", desc, domain.ParseAmount(amount).StringFixed(2))
		}
		fmt.Fprintf(tw, "  subtotal\t%s\t\n", g.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", history.Total(groups).StringFixed(2))
	return tw.Flush()
}

func (a *app) sell(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sell", flag.ContinueOnError)
	customer := fs.String("customer", "", "customer name")
	payment := fs.String("payment", domain.PaymentCash, "payment method")
	notes := fs.String("notes", "", "sale notes")
	yes := fs.Bool("yes", false, "sell beyond stock without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: backoffice sell [flags] NAME=QTY[@PRICE]...")
	}
	if err := a.svc.Catalog().Refresh(ctx); err != nil {
		return err
	}

	wb := a.svc.NewWorkbench(grid.SaleKind)
	defer wb.Close()
	for _, arg := range fs.Args() {
		line, err := parseSaleArg(arg)
		if err != nil {
			return err
		}
		row := wb.Grid().AddRow()
		wb.Grid().UpdateCell(row.LocalID, "product", line.name)
		wb.Grid().UpdateCell(row.LocalID, "quantity", line.quantity)
		if line.price != "" {
			wb.Grid().UpdateCell(row.LocalID, "unit_price", line.price)
		}
	}
	fmt.Fprintf(a.stdout, "total: %s\n", wb.Grid().GrandTotal().StringFixed(2))

	confirm := func(_ context.Context, issues []domain.StockIssue) bool {
		for _, is := range issues {
			fmt.Fprintf(a.stdout, "stock insuffisant: %s (demandé %d, disponible %d)\n", is.ProductName, is.Requested, is.Available)
		}
		if *yes {
			return true
		}
		fmt.Fprint(a.stdout, "continuer quand même ? [o/N] ")
		answer, _ := a.stdin.ReadString('\n')
		return isYes(answer)
	}

	report, err := wb.Save(ctx, reconcile.Options{Customer: *customer, PaymentMethod: *payment, Notes: *notes}, confirm)
	if err != nil {
		return err
	}
	printNotice(a.stdout, report.Notice())
	return nil
}

func (a *app) expense(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("expense", flag.ContinueOnError)
	date := fs.String("date", "", "expense date, YYYY-MM-DD or DD/MM/YYYY (default today)")
	payment := fs.String("payment", domain.PaymentCash, "payment method")
	category := fs.String("category", "", "expense category id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: backoffice expense [flags] DESC=AMOUNT...")
	}

	wb := a.svc.NewWorkbench(grid.ExpenseKind)
	defer wb.Close()
	for _, arg := range fs.Args() {
		desc, amount, err := parseExpenseArg(arg)
		if err != nil {
			return err
		}
		row := wb.Grid().AddRow()
		wb.Grid().UpdateCell(row.LocalID, "description", desc)
		wb.Grid().UpdateCell(row.LocalID, "amount", amount)
		wb.Grid().UpdateCell(row.LocalID, "expense_date", *date)
		wb.Grid().UpdateCell(row.LocalID, "payment_method", *payment)
		wb.Grid().UpdateCell(row.LocalID, "category", *category)
	}

	report, err := wb.Save(ctx, reconcile.Options{}, nil)
	if err != nil {
		return err
	}
	printNotice(a.stdout, report.Notice())
	return nil
}

func (a *app) categories(ctx context.Context, args []string) error {
	if len(args) > 2 {
		return errors.New("usage: backoffice categories [NAME [DESCRIPTION]]")
	}
	if len(args) > 0 {
		description := ""
		if len(args) == 2 {
			description = args[1]
		}
		c, err := a.svc.CreateExpenseCategory(ctx, args[0], description)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "category %d created: %s\n", c.ID, c.Name)
		return nil
	}

	list, err := a.svc.ExpenseCategories(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "no categories")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Description)
	}
	return tw.Flush()
}

func (a *app) stock(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: backoffice stock NAME [N|+N|-N]")
	}
	if len(args) == 1 {
		if err := a.svc.Catalog().Refresh(ctx); err != nil {
			return err
		}
		p, ok := a.svc.Catalog().ProductByName(args[0])
		if !ok {
			return &apperr.ReferenceNotFoundError{Entity: "product", Name: args[0]}
		}
		fmt.Fprintf(a.stdout, "%s: %d\n", p.Name, p.Stock)
		return nil
	}

	action, quantity, err := parseStockArg(args[1])
	if err != nil {
		return err
	}
	p, err := a.svc.AdjustStock(ctx, args[0], action, quantity)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d\n", p.Name, p.Stock)
	return nil
}

func (a *app) outOfStock(ctx context.Context) error {
	list, err := a.svc.OutOfStockSales(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "no sale beyond stock")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, o := range list {
		sale := "-"
		if o.Sale != nil {
			sale = fmt.Sprintf("#%d", *o.Sale)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.CreatedAt.In(a.cfg.Location()).Format("02/01/2006 15:04"), o.ProductName, o.QuantitySold, sale)
	}
	return tw.Flush()
}

func (a *app) importProducts(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: backoffice import-products FILE")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := a.svc.ImportProducts(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	if len(report.Preview.Rows) > 0 {
		fmt.Fprintf(a.stdout, "%d row(s) read from sheet %q\n", len(report.Preview.Rows), report.Preview.Sheet)
	}
	fmt.Fprintf(a.stdout, "%s (created %d, updated %d)\n", report.Result.Message, report.Result.Created, report.Result.Updated)
	for _, e := range report.Result.Errors {
		fmt.Fprintf(a.stdout, "  %s\n", e)
	}
	return nil
}

func (a *app) exportSales(ctx context.Context, args []string) error {
	params, err := rangeParams(args)
	if err != nil {
		return err
	}
	return a.saveDownload(func(w io.Writer) (apiclient.Download, error) {
		return a.svc.ExportSales(ctx, params.DateFrom, params.DateTo, w)
	})
}

func (a *app) exportExpenses(ctx context.Context, args []string) error {
	params, err := rangeParams(args)
	if err != nil {
		return err
	}
	return a.saveDownload(func(w io.Writer) (apiclient.Download, error) {
		return a.svc.ExportExpenses(ctx, params.DateFrom, params.DateTo, w)
	})
}

func (a *app) invoicePDF(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("invoice-pdf", flag.ContinueOnError)
	preview := fs.Bool("preview", false, "fetch the inline preview rendering")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: backoffice invoice-pdf [-preview] ID")
	}
	var id int
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &id); err != nil || id <= 0 {
		return fmt.Errorf("invalid invoice id %q", fs.Arg(0))
	}
	return a.saveDownload(func(w io.Writer) (apiclient.Download, error) {
		if *preview {
			return a.svc.PreviewInvoicePDF(ctx, id, w)
		}
		return a.svc.InvoicePDF(ctx, id, w)
	})
}

// saveDownload streams into a temporary file and renames it to the name the
// server chose once the body is complete.
func (a *app) saveDownload(fetch func(io.Writer) (apiclient.Download, error)) error {
	var dl apiclient.Download
	var target string
	err := writeTemp(a.dir, func(w io.Writer) (string, error) {
		var err error
		dl, err = fetch(w)
		target = filepath.Join(a.dir, dl.Filename)
		return target, err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "saved %s (%d bytes)\n", target, dl.Bytes)
	return nil
}

// writeFile renders into path through a temporary file, so a failed render
// never leaves a truncated workbook behind.
func (a *app) writeFile(path string, render func(io.Writer) error) error {
	err := writeTemp(filepath.Dir(path), func(w io.Writer) (string, error) {
		return path, render(w)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "saved %s\n", path)
	return nil
}

// writeTemp fills a temporary file in dir and renames it to the path fill
// returns. dir must be on the same filesystem as that path.
func writeTemp(dir string, fill func(io.Writer) (string, error)) error {
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".backoffice-download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	target, err := fill(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (a *app) journal(ctx context.Context, args []string) error {
	limit := 10
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil || limit <= 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
	}
	batches, err := a.svc.Journal(ctx, limit)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Fprintln(a.stdout, "journal is empty")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d row(s)\t%s\n", b.CreatedAt.Local().Format("02/01/2006 15:04"), b.Kind, b.Status, len(b.Rows), b.Error)
	}
	return tw.Flush()
}

func printNotice(w io.Writer, n apperr.Notice) {
	fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
}

type saleLine struct {
	name     string
	quantity string
	price    string
}

// parseSaleArg reads NAME=QTY or NAME=QTY@PRICE.
func parseSaleArg(arg string) (saleLine, error) {
	name, rest, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return saleLine{}, fmt.Errorf("invalid sale line %q, want NAME=QTY[@PRICE]", arg)
	}
	qty, price, _ := strings.Cut(rest, "@")
	line := saleLine{name: name, quantity: strings.TrimSpace(qty), price: strings.TrimSpace(price)}
	if !domain.ParseAmount(line.quantity).IsPositive() {
		return saleLine{}, fmt.Errorf("invalid quantity in %q", arg)
	}
	return line, nil
}

// parseExpenseArg reads DESC=AMOUNT. The last "=" separates the amount so
// descriptions may contain one.
func parseExpenseArg(arg string) (string, string, error) {
	idx := strings.LastIndex(arg, "=")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid expense %q, want DESC=AMOUNT", arg)
	}
	desc := strings.TrimSpace(arg[:idx])
	amount := strings.TrimSpace(arg[idx+1:])
	if desc == "" || !domain.ParseAmount(amount).IsPositive() {
		return "", "", fmt.Errorf("invalid expense %q, want DESC=AMOUNT", arg)
	}
	return desc, amount, nil
}

func rangeParams(args []string) (apiclient.ListParams, error) {
	if len(args) > 2 {
		return apiclient.ListParams{}, errors.New("expected at most FROM and TO")
	}
	var params apiclient.ListParams
	for i, raw := range args {
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return apiclient.ListParams{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
		}
		if i == 0 {
			params.DateFrom = raw
		} else {
			params.DateTo = raw
		}
	}
	return params, nil
}

// parseStockArg reads N (set), +N (add) or -N (subtract).
func parseStockArg(arg string) (string, int, error) {
	action := domain.StockActionSet
	raw := strings.TrimSpace(arg)
	switch {
	case strings.HasPrefix(raw, "+"):
		action, raw = domain.StockActionAdd, raw[1:]
	case strings.HasPrefix(raw, "-"):
		action, raw = domain.StockActionSubtract, raw[1:]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid stock quantity %q, want N, +N or -N", arg)
	}
	return action, n, nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func validateConfig(cfg config.Config) error {
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKOFFICE_API_URL must be an absolute http(s) URL, got %q", cfg.APIBaseURL)
	}
	if cfg.SessionFile != "" && len(cfg.SessionPassphrase) < 12 {
		return fmt.Errorf("BACKOFFICE_SESSION_PASSPHRASE must be at least 12 characters when BACKOFFICE_SESSION_FILE is set")
	}
	return nil
}
