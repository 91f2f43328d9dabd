package alert

import (
	"encoding/csv"
	"io"
	"time"

	"fleetwatch/internal/models"
)

var csvHeader = []string{
	"ID", "Severity", "Device", "Location", "Condition",
	"Start Time", "Duration", "Status", "Assigned To",
}

// WriteCSV serializes instances as UTF-8 comma-delimited rows with a header,
// one row per instance. Duration is start-to-resolution, or start-to-now for
// instances still open.
func WriteCSV(w io.Writer, instances []models.AlertInstance, now time.Time) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, inst := range instances {
		row := []string{
			inst.ID,
			inst.Severity.Display().Label,
			inst.DeviceName,
			inst.LocationName,
			inst.TriggerCondition,
			inst.StartTime.Format(time.RFC3339),
			inst.Duration(now).Round(time.Second).String(),
			string(inst.Status),
			inst.AssignedTo,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
