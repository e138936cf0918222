// Package clinic はダッシュボード表示用のデモ診療データを提供する。
// 外部の診療システムとの接続は行わず、固定のサンプルデータを返す。
package clinic

import (
	"sort"
	"time"
)

// Appointment は予約の1レコード。
type Appointment struct {
	ID          string
	PatientName string
	Department  string
	StartsAt    time.Time
	Status      string // scheduled, done, cancelled
}

// Summary はダッシュボードのサマリーカードに表示する集計値。
type Summary struct {
	TodayAppointments int
	DoneCount         int
	CancelledCount    int
	Departments       []DepartmentCount
}

// DepartmentCount は診療科別の予約数。
type DepartmentCount struct {
	Department string
	Count      int
}

// Dataset はデモ予約データの固定セット。
type Dataset struct {
	appointments []Appointment
	now          func() time.Time
}

// NewDataset はデモデータセットを生成する。
func NewDataset() *Dataset {
	return &Dataset{
		appointments: demoAppointments(),
		now:          time.Now,
	}
}

// demoAppointments は当日のサンプル予約を生成する。
func demoAppointments() []Appointment {
	today := time.Now().Truncate(24 * time.Hour)
	at := func(hour, min int) time.Time {
		return today.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
	}
	return []Appointment{
		{ID: "apt-001", PatientName: "佐藤 花子", Department: "内科", StartsAt: at(9, 0), Status: "done"},
		{ID: "apt-002", PatientName: "鈴木 一郎", Department: "内科", StartsAt: at(9, 30), Status: "done"},
		{ID: "apt-003", PatientName: "高橋 美咲", Department: "整形外科", StartsAt: at(10, 0), Status: "scheduled"},
		{ID: "apt-004", PatientName: "田中 健", Department: "皮膚科", StartsAt: at(10, 30), Status: "cancelled"},
		{ID: "apt-005", PatientName: "伊藤 さくら", Department: "内科", StartsAt: at(11, 0), Status: "scheduled"},
		{ID: "apt-006", PatientName: "渡辺 大輔", Department: "整形外科", StartsAt: at(14, 0), Status: "scheduled"},
		{ID: "apt-007", PatientName: "山本 結衣", Department: "皮膚科", StartsAt: at(14, 30), Status: "scheduled"},
		{ID: "apt-008", PatientName: "中村 蓮", Department: "内科", StartsAt: at(15, 0), Status: "scheduled"},
	}
}

// Appointments は予約を開始時刻順で返す。
func (d *Dataset) Appointments() []Appointment {
	out := make([]Appointment, len(d.appointments))
	copy(out, d.appointments)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

// Summarize はダッシュボードのサマリーを集計する。
func (d *Dataset) Summarize() Summary {
	summary := Summary{}
	counts := make(map[string]int)

	for _, apt := range d.appointments {
		summary.TodayAppointments++
		switch apt.Status {
		case "done":
			summary.DoneCount++
		case "cancelled":
			summary.CancelledCount++
		}
		counts[apt.Department]++
	}

	for dept, count := range counts {
		summary.Departments = append(summary.Departments, DepartmentCount{Department: dept, Count: count})
	}
	sort.Slice(summary.Departments, func(i, j int) bool {
		if summary.Departments[i].Count != summary.Departments[j].Count {
			return summary.Departments[i].Count > summary.Departments[j].Count
		}
		return summary.Departments[i].Department < summary.Departments[j].Department
	})
	return summary
}
