// Package report renders analysis output into a multi-sheet Excel
// workbook for distribution outside the pipeline.
package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/uzbuild/market-intel/internal/analysis"
	"github.com/uzbuild/market-intel/internal/normalize"
)

// Exporter writes market reports to disk.
type Exporter struct {
	analyzer *analysis.Analyzer
	log      *zap.Logger
}

// NewExporter creates an Exporter over the given analyzer.
func NewExporter(analyzer *analysis.Analyzer) *Exporter {
	return &Exporter{
		analyzer: analyzer,
		log:      zap.L().With(zap.String("component", "report")),
	}
}

// Options tunes a report export.
type Options struct {
	LookbackMonths int
	TopN           int
	// ProfileSTIRs adds one profile sheet per company.
	ProfileSTIRs []string
}

// Export assembles the workbook: leaderboard, market summary, regional
// and monthly activity, top customers, and optional company profiles.
func (e *Exporter) Export(ctx context.Context, path string, opts Options) error {
	if opts.LookbackMonths <= 0 {
		opts.LookbackMonths = 12
	}
	if opts.TopN <= 0 {
		opts.TopN = 15
	}

	file := xlsx.NewFile()

	if err := e.addLeaderboard(ctx, file, opts.TopN); err != nil {
		return err
	}
	if err := e.addOverview(ctx, file, opts.LookbackMonths); err != nil {
		return err
	}
	if err := e.addRecentDeals(ctx, file); err != nil {
		return err
	}
	for _, stir := range opts.ProfileSTIRs {
		if err := e.addProfile(ctx, file, stir); err != nil {
			return err
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	e.log.Info("workbook written",
		zap.String("path", path),
		zap.Int("sheets", len(file.Sheets)))
	return nil
}

func (e *Exporter) addLeaderboard(ctx context.Context, file *xlsx.File, topN int) error {
	rows, err := e.analyzer.TopCompanies(ctx, topN)
	if err != nil {
		return err
	}

	sheet, err := file.AddSheet("Leaderboard")
	if err != nil {
		return eris.Wrap(err, "report: add leaderboard sheet")
	}

	writeHeader(sheet, "Rank", "Company", "STIR", "Region", "Rating",
		"Score", "Wins", "Contract Value (UZS)", "Avg Discount %", "Employees")

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Rank)
		row.AddCell().SetString(r.CanonicalName)
		row.AddCell().SetString(r.STIR)
		row.AddCell().SetString(r.Region)
		row.AddCell().SetString(r.RatingLetter)
		setOptFloat(row.AddCell(), r.RatingScore)
		row.AddCell().SetInt64(r.TotalWins)
		row.AddCell().SetFloat(r.TotalValue)
		row.AddCell().SetFloat(r.AvgDiscount)
		setOptInt(row.AddCell(), r.EmployeeCount)
	}
	return nil
}

func (e *Exporter) addOverview(ctx context.Context, file *xlsx.File, lookbackMonths int) error {
	o, err := e.analyzer.MarketOverview(ctx, lookbackMonths)
	if err != nil {
		return err
	}

	sheet, err := file.AddSheet("Market Overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}

	writeHeader(sheet, "Metric", "Value")
	writeKV(sheet, "Window (months)", strconv.Itoa(lookbackMonths))
	writeKV(sheet, "Total tenders", strconv.FormatInt(o.Summary.TotalTenders, 10))
	writeKV(sheet, "Unique winners", strconv.FormatInt(o.Summary.UniqueWinners, 10))
	writeKV(sheet, "Total volume (UZS)", formatFloat(o.Summary.TotalVolume))
	writeKV(sheet, "Avg contract (UZS)", formatFloat(o.Summary.AvgContract))
	writeKV(sheet, "Avg discount %", formatFloat(o.Summary.AvgDiscount))
	writeKV(sheet, "Avg participants", formatFloat(o.Summary.AvgParticipants))

	regions, err := file.AddSheet("By Region")
	if err != nil {
		return eris.Wrap(err, "report: add regions sheet")
	}
	writeHeader(regions, "Region", "Tenders", "Volume (UZS)", "Avg Discount %")
	for _, r := range o.ByRegion {
		row := regions.AddRow()
		row.AddCell().SetString(r.Region)
		row.AddCell().SetInt64(r.Tenders)
		row.AddCell().SetFloat(r.Volume)
		row.AddCell().SetFloat(r.AvgDiscount)
	}

	monthly, err := file.AddSheet("Monthly Trend")
	if err != nil {
		return eris.Wrap(err, "report: add monthly sheet")
	}
	writeHeader(monthly, "Month", "Tenders", "Volume (UZS)")
	for _, m := range o.MonthlyTrend {
		row := monthly.AddRow()
		row.AddCell().SetString(m.Month)
		row.AddCell().SetInt64(m.Tenders)
		row.AddCell().SetFloat(m.Volume)
	}

	customers, err := file.AddSheet("Top Customers")
	if err != nil {
		return eris.Wrap(err, "report: add customers sheet")
	}
	writeHeader(customers, "Customer", "Tenders", "Volume (UZS)")
	for _, c := range o.TopCustomers {
		row := customers.AddRow()
		row.AddCell().SetString(c.CustomerName)
		row.AddCell().SetInt64(c.Tenders)
		row.AddCell().SetFloat(c.Volume)
	}
	return nil
}

func (e *Exporter) addRecentDeals(ctx context.Context, file *xlsx.File) error {
	deals, err := e.analyzer.RecentDeals(ctx, 50)
	if err != nil {
		return err
	}

	sheet, err := file.AddSheet("Recent Deals")
	if err != nil {
		return eris.Wrap(err, "report: add recent deals sheet")
	}

	writeHeader(sheet, "Deal", "Date", "Winner", "Rating", "Customer",
		"Cost (UZS)", "Discount %", "Region")
	for _, d := range deals {
		winner := d.CanonicalName
		if winner == "" {
			winner = d.ProviderName
		}
		row := sheet.AddRow()
		row.AddCell().SetInt64(d.DealID)
		row.AddCell().SetString(d.DealDate.Format("2006-01-02"))
		row.AddCell().SetString(winner)
		row.AddCell().SetString(d.RatingLetter)
		row.AddCell().SetString(d.CustomerName)
		row.AddCell().SetFloat(d.DealCost)
		row.AddCell().SetFloat(d.DiscountPct)
		row.AddCell().SetString(d.Region)
	}
	return nil
}

func (e *Exporter) addProfile(ctx context.Context, file *xlsx.File, stir string) error {
	p, err := e.analyzer.CompanyProfile(ctx, stir)
	if err != nil {
		return err
	}

	sheet, err := file.AddSheet(sheetName("Profile " + stir))
	if err != nil {
		return eris.Wrapf(err, "report: add profile sheet for %s", stir)
	}

	writeHeader(sheet, "Field", "Value")
	writeKV(sheet, "Company", p.Company.CanonicalName)
	writeKV(sheet, "STIR", p.Company.STIR)
	writeKV(sheet, "Region", p.Company.Region)
	writeKV(sheet, "Rating", p.Company.RatingLetter)
	writeKV(sheet, "Type", p.Company.CompanyType)
	writeKV(sheet, "Wins", strconv.Itoa(p.Company.TotalWins))
	writeKV(sheet, "Contract value (UZS)", formatFloat(p.Company.TotalContractValue))
	writeKV(sheet, "Avg discount %", formatFloat(p.Company.AvgDiscountPct))
	writeKV(sheet, "Known names", strings.Join(dedupeNames(p.Company.RawNames), "; "))

	sheet.AddRow()
	writeHeader(sheet, "Category", "Earned", "Max", "Percent")
	for _, c := range p.RatingBreakdown {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Category)
		row.AddCell().SetFloat(c.Earned)
		row.AddCell().SetFloat(c.Max)
		row.AddCell().SetFloat(c.Percent)
	}

	sheet.AddRow()
	writeHeader(sheet, "Date", "Customer", "Description",
		"Start Cost", "Deal Cost", "Discount %", "Participants")
	for _, c := range p.TopContracts {
		row := sheet.AddRow()
		if c.DealDate != nil {
			row.AddCell().SetString(c.DealDate.Format("2006-01-02"))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(c.CustomerName)
		row.AddCell().SetString(c.Description)
		row.AddCell().SetFloat(c.StartCost)
		row.AddCell().SetFloat(c.DealCost)
		row.AddCell().SetFloat(c.DiscountPct)
		row.AddCell().SetInt(c.Participants)
	}
	return nil
}

func writeHeader(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}

func writeKV(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}

func setOptFloat(cell *xlsx.Cell, v *float64) {
	if v != nil {
		cell.SetFloat(*v)
	}
}

func setOptInt(cell *xlsx.Cell, v *int) {
	if v != nil {
		cell.SetInt(*v)
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// dedupeNames collapses raw name sightings that differ only in
// whitespace or Unicode form, keeping the first spelling seen.
func dedupeNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		dup := false
		for _, kept := range out {
			if normalize.SameName(n, kept) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}

// sheetName caps a title at Excel's 31-character limit.
func sheetName(s string) string {
	if len(s) > 31 {
		return s[:31]
	}
	return s
}
