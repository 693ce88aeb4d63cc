package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tariffapp "energy-billing/internal/tariff/application"
	tariff "energy-billing/internal/tariff/domain"
	tariffpg "energy-billing/internal/tariff/infrastructure/postgres"
	"energy-billing/internal/tariff/infrastructure/sheet"
)

var (
	tariffFile   string
	templateFile string
)

var tariffsCmd = &cobra.Command{
	Use:   "tariffs",
	Short: "Manage country tariff profiles",
}

var tariffsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tariff profiles from an .xlsx workbook or a YAML file",
	RunE:  runTariffsImport,
}

var tariffsTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an example tariff workbook",
	RunE:  runTariffsTemplate,
}

func init() {
	tariffsImportCmd.Flags().StringVarP(&tariffFile, "file", "f", "", "workbook (.xlsx) or YAML (.yaml, .yml) path")
	_ = tariffsImportCmd.MarkFlagRequired("file")
	tariffsTemplateCmd.Flags().StringVarP(&templateFile, "out", "o", "tariffs.xlsx", "output workbook path")

	tariffsCmd.AddCommand(tariffsImportCmd, tariffsTemplateCmd)
	rootCmd.AddCommand(tariffsCmd)
}

func runTariffsImport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	profiles, err := readProfiles(tariffFile)
	if err != nil {
		return err
	}
	db, err := openDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	importer, err := tariffapp.NewImportService(tariffpg.NewProfileRepository(db), logger)
	if err != nil {
		return err
	}
	n, err := importer.Import(cmd.Context(), profiles)
	if err != nil {
		return err
	}
	logger.Info("tariff profiles imported", zap.String("file", tariffFile), zap.Int("profiles", n))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d tariff profiles\n", n)
	return nil
}

func readProfiles(path string) ([]tariff.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return sheet.ReadYAML(f)
	default:
		return sheet.ReadWorkbook(f)
	}
}

func runTariffsTemplate(cmd *cobra.Command, _ []string) error {
	body, err := sheet.BuildWorkbook([]tariff.Profile{exampleProfile()})
	if err != nil {
		return err
	}
	if err := os.WriteFile(templateFile, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", templateFile)
	return nil
}

func exampleProfile() tariff.Profile {
	return tariff.Profile{
		CountryID:         "KR",
		IndustrialRate:    decimal.RequireFromString("120.5"),
		CommercialRate:    decimal.RequireFromString("140"),
		PeakMultiplier:    decimal.RequireFromString("1.5"),
		MidPeakMultiplier: decimal.RequireFromString("1.2"),
		OffPeakMultiplier: decimal.RequireFromString("0.8"),
		PeakHours:         []int{10, 11, 13, 14, 15, 16},
		MidPeakHours:      []int{8, 9, 12, 17, 18, 19, 20, 21},
		OffPeakHours:      []int{0, 1, 2, 3, 4, 5, 6, 7, 22, 23},
	}
}
