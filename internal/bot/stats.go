package bot

import (
	"fmt"
	"os"
	"runtime"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

var botStartTime = time.Now()

type systemInfo struct {
	HostInfo    *host.InfoStat
	CPUCounts   int
	CPUPhysical int
	CPUUsage    float64
	RAMInfo     *mem.VirtualMemoryStat
	DiskInfo    *disk.UsageStat
	BytesSent   uint64
	BytesRecv   uint64
	ProcRAM     int64
	ProcCPU     float64
	BotUptime   time.Duration
	GoRoutines  int
	HeapAlloc   uint64
	NumGC       uint32
}

func (b *Bot) handleStats(msg *tgbotapi.Message) {
	if b.ownerID == 0 || msg.From == nil || msg.From.ID != b.ownerID {
		b.msgr.SendMessage(msg.Chat.ID, "Эта команда доступна только владельцу бота.")
		return
	}

	waitID, err := b.msgr.SendMessage(msg.Chat.ID, "Собираю информацию о системе...")
	if err != nil {
		return
	}
	defer b.msgr.DeleteMessage(msg.Chat.ID, waitID)

	statusText := buildStatusText(gatherSystemInfo())

	statusMsg := tgbotapi.NewMessage(msg.Chat.ID, statusText)
	statusMsg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(statusMsg); err != nil {
		logger.Error("failed to send stats", "error", err)
	}
}

func gatherSystemInfo() systemInfo {
	info := systemInfo{}

	if hostInfo, err := host.Info(); err == nil {
		info.HostInfo = hostInfo
	} else {
		logger.Warn("host info unavailable", "error", err)
		info.HostInfo = &host.InfoStat{Hostname: "Unknown", OS: "Unknown"}
	}

	info.CPUCounts, _ = cpu.Counts(true)
	info.CPUPhysical, _ = cpu.Counts(false)

	if cpuUsage, err := cpu.Percent(time.Second, false); err == nil && len(cpuUsage) > 0 {
		info.CPUUsage = cpuUsage[0]
	}

	if ramInfo, err := mem.VirtualMemory(); err == nil {
		info.RAMInfo = ramInfo
	} else {
		logger.Warn("RAM info unavailable", "error", err)
		info.RAMInfo = &mem.VirtualMemoryStat{}
	}

	if diskInfo, err := disk.Usage("/"); err == nil {
		info.DiskInfo = diskInfo
	} else {
		logger.Warn("disk info unavailable", "error", err)
		info.DiskInfo = &disk.UsageStat{}
	}

	if netIO, err := gnet.IOCounters(false); err == nil && len(netIO) > 0 {
		info.BytesSent = netIO[0].BytesSent
		info.BytesRecv = netIO[0].BytesRecv
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if procRAMInfo, err := proc.MemoryInfo(); err == nil {
			info.ProcRAM = int64(procRAMInfo.RSS)
		}
		info.ProcCPU, _ = proc.CPUPercent()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	info.GoRoutines = runtime.NumGoroutine()
	info.HeapAlloc = m.HeapAlloc
	info.NumGC = m.NumGC
	info.BotUptime = time.Since(botStartTime)

	return info
}

func buildStatusText(info systemInfo) string {
	return fmt.Sprintf(
		"*System*\n"+
			"├─ OS: `%s`\n"+
			"├─ Hostname: `%s`\n"+
			"└─ Uptime: `%s`\n\n"+
			"*CPU*\n"+
			"├─ Cores: `%d` (`%d` threads)\n"+
			"└─ Usage: `%.2f%%`\n\n"+
			"*Memory*\n"+
			"├─ Used: `%s / %s` (`%.1f%%`)\n"+
			"└─ Available: `%s`\n\n"+
			"*Disk (/)*\n"+
			"├─ Used: `%s / %s` (`%.1f%%`)\n"+
			"└─ Free: `%s`\n\n"+
			"*Network*\n"+
			"├─ Sent: `%s`\n"+
			"└─ Received: `%s`\n\n"+
			"*Bot Process*\n"+
			"├─ Uptime: `%s`\n"+
			"├─ PID: `%d`\n"+
			"├─ CPU: `%.2f%%`\n"+
			"├─ Memory: `%s`\n"+
			"└─ Go Version: `%s`\n\n"+
			"*Go Runtime*\n"+
			"├─ Goroutines: `%d`\n"+
			"├─ Heap Alloc: `%s`\n"+
			"└─ GC Runs: `%d`",
		info.HostInfo.OS,
		info.HostInfo.Hostname,
		formatDurationFromSeconds(info.HostInfo.Uptime),
		info.CPUPhysical,
		info.CPUCounts,
		info.CPUUsage,
		formatFileSize(int64(info.RAMInfo.Used)),
		formatFileSize(int64(info.RAMInfo.Total)),
		info.RAMInfo.UsedPercent,
		formatFileSize(int64(info.RAMInfo.Available)),
		formatFileSize(int64(info.DiskInfo.Used)),
		formatFileSize(int64(info.DiskInfo.Total)),
		info.DiskInfo.UsedPercent,
		formatFileSize(int64(info.DiskInfo.Free)),
		formatFileSize(int64(info.BytesSent)),
		formatFileSize(int64(info.BytesRecv)),
		formatDurationFromSeconds(uint64(info.BotUptime.Seconds())),
		os.Getpid(),
		info.ProcCPU,
		formatFileSize(info.ProcRAM),
		runtime.Version(),
		info.GoRoutines,
		formatFileSize(int64(info.HeapAlloc)),
		info.NumGC,
	)
}

func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case size >= TB:
		return fmt.Sprintf("%.2f TB", float64(size)/TB)
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func formatDurationFromSeconds(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
