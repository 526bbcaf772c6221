package bamboohr

import "encoding/json"

type Employee struct {
	ID          json.Number `json:"id"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	DisplayName string      `json:"displayName"`
	WorkEmail   string      `json:"workEmail"`
}

type timesheetEntry struct {
	ID          json.Number  `json:"id"`
	EmployeeID  json.Number  `json:"employeeId"`
	Type        string       `json:"type"`
	Date        string       `json:"date"`
	Hours       *float64     `json:"hours"`
	Note        *string      `json:"note"`
	Approved    bool         `json:"approved"`
	ProjectInfo *projectInfo `json:"projectInfo"`
}

type projectInfo struct {
	Project *idName `json:"project"`
	Task    *idName `json:"task"`
}

type idName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type hourEntry struct {
	EmployeeID int     `json:"employeeId"`
	Date       string  `json:"date"`
	Hours      float64 `json:"hours"`
	Note       string  `json:"note,omitempty"`
	ProjectID  int     `json:"projectId,omitempty"`
	TaskID     int     `json:"taskId,omitempty"`
}

type storeHoursRequest struct {
	Hours []hourEntry `json:"hours"`
}

type deleteHoursRequest struct {
	HourEntryIDs []int `json:"hourEntryIds"`
}
