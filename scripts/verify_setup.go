package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  naracrawler 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 浏览器: 未找到时rod会在首次启动时自动下载
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - 首次运行时将自动下载")
	}

	// 内存: 每个标签页约100-200MB
	if vm, err := mem.VirtualMemory(); err == nil {
		availMB := vm.Available / 1024 / 1024
		fmt.Printf("✅ 可用内存: %dMB\n", availMB)
		if availMB < 2000 {
			fmt.Println("⚠️  可用内存不足2GB,建议使用 -w 10")
		}
	} else {
		fmt.Printf("⚠️  无法读取系统内存: %v\n", err)
	}

	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		fmt.Println("正在下载依赖...")
		cmd := exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/naracrawler",
		"internal/config",
		"internal/core",
		"internal/crawlers",
		"internal/exporter",
		"internal/models",
		"internal/store",
		"internal/utils",
	}
	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go run ./cmd/naracrawler init-config' 生成配置")
		fmt.Println("  2. 运行 'go run ./cmd/naracrawler -s 15000000 -e 15000010' 试爬")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
