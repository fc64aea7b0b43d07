package metrics

import (
	"os"

	"vpresent/log"
	"vpresent/util/timer"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"
)

const nb1024 = 1024

func (m *Monitor) system() {
	t := timer.NewTicker(m.opts.SampleInterval, m.getSys)

	m.Lock()
	m.ticker = t
	m.Unlock()
}

func (m *Monitor) getSys() {
	if rss, err := GetProcessRSS(); err == nil {
		m.MemoryUseGauge.With(m.labels()).Set(float64(rss) / float64(nb1024*nb1024))
	} else {
		log.Debug("GetProcessRSS", zap.String("err", err.Error()))
	}

	if p, err := GetMemPercent(); err == nil {
		m.MemoryPercent.With(m.labels()).Set(p)
	}

	if p, err := GetCPUPercent(); err == nil {
		m.CPUPercent.With(m.labels()).Set(p)
	}
}

// GetCPUPercent is the host cpu usage since the previous call.
func GetCPUPercent() (float64, error) {
	percent, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}

	if len(percent) == 0 {
		return 0, nil
	}

	return percent[0], nil
}

func GetMemPercent() (float64, error) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}

	return memInfo.UsedPercent, nil
}

func GetProcessRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}

	return info.RSS, nil
}
