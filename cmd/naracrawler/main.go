package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/naracrawler/internal/config"
	"github.com/RecoveryAshes/naracrawler/internal/core"
	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 爬取参数
	startID     int
	endID       int
	urlFile     string
	outputDir   string
	formats     []string
	workers     int
	headless    bool
	stealthMode bool
	resume      bool
	pageTimeout int
	rateLimit   float64

	// init-config参数
	forceInit bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "naracrawler",
	Short: "공공데이터포털 OpenAPI 문서 크롤러",
	Long: `naracrawler - 公共数据门户(data.go.kr) OpenAPI 文档爬取工具

按文档号范围访问 https://www.data.go.kr/data/{N}/openapi.do,提取:
  • 页面表格信息 (提供机构、API类型、修改日等)
  • Swagger/OpenAPI 规范 (内联变量、脚本、swaggerUi、外部文件)
  • 无规范时的页面说明 (请求变量、输出结果)
并按分类写出 json / xml / md / csv / yaml 文件。

示例:
  naracrawler -s 15000000 -e 15000100
  naracrawler -s 15000000 -e 15099999 -w 30 --formats json,md --resume
  naracrawler -f output/exception_urls.txt
  naracrawler init-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg.MergeCLIFlags(collectOverrides(cmd))
		appConfig = cfg

		if err := utils.InitLogger(cfg.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if cfg.File != "" {
			utils.Infof("使用配置文件: %s", cfg.File)
		}
		return nil
	},
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	headerManager, err := core.NewHeaderManager(appConfig.HTTPHeaders(), headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printValidatedHeaders(headerManager)
	}

	crawl := appConfig.Crawl
	if urlFile == "" && crawl.StartID == 0 && crawl.EndID == 0 {
		return cmd.Help()
	}

	var urls []string
	if urlFile != "" {
		if urls, err = utils.ReadURLsFromFile(urlFile); err != nil {
			return err
		}
	} else {
		if err := ValidateRange(crawl.StartID, crawl.EndID); err != nil {
			return err
		}
		if urls, err = models.GenerateURLs(crawl.StartID, crawl.EndID); err != nil {
			return err
		}
	}

	if _, err := headerManager.GetHeaders(); err != nil {
		return fmt.Errorf("HTTP头部配置无效: %w", err)
	}
	utils.Debugf("HTTP头部: %v", headerManager.GetSafeHeaders())

	crawler, err := core.NewCrawler(crawl, headerManager)
	if err != nil {
		return err
	}

	// Ctrl+C 停止派发新的URL,已在运行的单元结束后写出汇总
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := crawler.Crawl(ctx, urls)
	if err != nil {
		return fmt.Errorf("爬取失败: %w", err)
	}
	if ctx.Err() != nil {
		utils.Warn("爬取被中断,汇总只包含已派发的URL")
	}

	utils.PrintSummary(os.Stdout, summary)
	utils.Info("✨ 爬取任务完成!")
	return nil
}

func printValidatedHeaders(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

// collectOverrides 只收集用户显式指定的参数
func collectOverrides(cmd *cobra.Command) config.Overrides {
	flags := cmd.Flags()
	var o config.Overrides
	if flags.Changed("start") {
		o.StartID = &startID
	}
	if flags.Changed("end") {
		o.EndID = &endID
	}
	if flags.Changed("output") {
		o.OutputDir = &outputDir
	}
	if flags.Changed("formats") {
		o.Formats = formats
	}
	if flags.Changed("workers") {
		o.Workers = &workers
	}
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("stealth") {
		o.Stealth = &stealthMode
	}
	if flags.Changed("resume") {
		o.Resume = &resume
	}
	if flags.Changed("timeout") {
		o.PageTimeout = &pageTimeout
	}
	if flags.Changed("rate") {
		o.RateLimit = &rateLimit
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	return o
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("naracrawler %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "生成配置文件模板",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteTemplate(path, forceInit); err != nil {
			return err
		}
		fmt.Printf("✅ 配置模板已生成: %s\n", path)
		return nil
	},
}

func init() {
	d := models.DefaultCrawlConfig()

	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置后退出")

	// 爬取参数
	rootCmd.Flags().IntVarP(&startID, "start", "s", 0, "起始文档号")
	rootCmd.Flags().IntVarP(&endID, "end", "e", 0, "结束文档号(含)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "URL列表文件,每行一个,可直接使用failed_urls.txt/exception_urls.txt")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", d.OutputDir, "输出目录")
	rootCmd.Flags().StringSliceVar(&formats, "formats", d.Formats, "导出格式 (json,xml,md,csv,yaml)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", d.Workers, fmt.Sprintf("并发数 (%d-%d,超出范围使用%d)", models.MinWorkers, models.MaxWorkers, models.DefaultWorkers))
	rootCmd.Flags().BoolVar(&headless, "headless", d.Headless, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&stealthMode, "stealth", d.Stealth, "标签页注入反检测脚本")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "跳过上次已成功的文档")
	rootCmd.Flags().IntVar(&pageTimeout, "timeout", d.PageTimeout, "页面加载超时(秒)")
	rootCmd.Flags().Float64Var(&rateLimit, "rate", 0, "每秒派发的URL数,0表示不限速")

	rootCmd.MarkFlagsMutuallyExclusive("url-file", "start")
	rootCmd.MarkFlagsMutuallyExclusive("url-file", "end")

	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "覆盖已存在的配置文件")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
