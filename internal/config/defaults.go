package config

import "github.com/Larry-Leee/progressVisualisation/internal/locator"

// ApplyDefaults sets default values for any zero values in cfg.
// Column keywords default per field, so a config may override only some fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/progressvis/data/db/progress.db"
	}
	if cfg.Storage.ProjectIndexPath == "" {
		cfg.Storage.ProjectIndexPath = "/usr/local/var/progressvis/data/indices/projects"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".docx", ".xlsx", ".ods", ".odt"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}

	if cfg.Locator.Mode == "" {
		cfg.Locator.Mode = locator.ModeKeyword
	}
	if cfg.Locator.Keywords == nil {
		cfg.Locator.Keywords = []string{"分部", "计划", "完成", "设计", "开累"}
	}
	if cfg.Locator.ExactHeaders == nil {
		cfg.Locator.ExactHeaders = []string{"分部工程", "本月计划工程量", "本月完成工程量"}
	}

	c := &cfg.Columns
	if c.ProjectName == nil {
		c.ProjectName = []string{"分部工程", "分部", "项目名称", "工程名称"}
	}
	if c.DesignQuantity == nil {
		c.DesignQuantity = []string{"设计工程量", "设计"}
	}
	if c.CumulativeQuantity == nil {
		c.CumulativeQuantity = []string{"开累完成", "开累", "累计完成"}
	}
	if c.PeriodPlan == nil {
		c.PeriodPlan = []string{"本月计划", "计划"}
	}
	if c.PeriodActual == nil {
		c.PeriodActual = []string{"本月完成", "本月实际", "完成"}
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.SkipUnchanged == nil {
		t := true
		cfg.Ingest.SkipUnchanged = &t
	}
	if cfg.Export.Directory == "" {
		cfg.Export.Directory = "./exports"
	}
}
