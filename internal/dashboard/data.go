// Package dashboard serves the read-only widgets of the inicio page. The
// content is fixed; only the POC list can be searched and paged.
package dashboard

type Publico struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Estado string `json:"estado"`
}

type Change struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type KPI struct {
	Title   string `json:"title"`
	Value   string `json:"value"`
	Change  Change `json:"change"`
	Primary bool   `json:"primary,omitempty"`
}

type Task struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

type Member struct {
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Task     string `json:"task"`
	Status   string `json:"status"`
	Progress string `json:"progress,omitempty"`
}

type Reminder struct {
	Title string `json:"title"`
	Time  string `json:"time"`
}

type DayActivity struct {
	Day   string `json:"day"`
	Value int    `json:"value"`
}

const (
	StatusEnCurso     = "En curso"
	StatusPlanificado = "Planificado"
	StatusCompletado  = "Completado"

	progressPercent = 41
)

func Publicos() []Publico {
	return []Publico{
		{ID: "1", Nombre: "Equipo A", Estado: "activo"},
		{ID: "2", Nombre: "Equipo B", Estado: "inactivo"},
		{ID: "3", Nombre: "Equipo C", Estado: "pendiente"},
	}
}

func KPIs() []KPI {
	return []KPI{
		{Title: "POCs totales", Value: "24", Change: Change{Type: "increase", Label: "vs mes pasado"}, Primary: true},
		{Title: "POCs finalizadas", Value: "10", Change: Change{Type: "increase", Label: "vs mes pasado"}},
		{Title: "POCs en curso", Value: "12", Change: Change{Type: "increase", Label: "vs mes pasado"}},
		{Title: "POCs pendientes", Value: "2", Change: Change{Type: "decrease", Label: "en discusión"}},
	}
}

func Tasks() []Task {
	return []Task{
		{Title: "Desarrollar endpoints de API", Date: "25 Nov 2024", Status: StatusEnCurso},
		{Title: "Flujo de Onboarding", Date: "28 Nov 2024", Status: StatusPlanificado},
		{Title: "Construir Tablero", Date: "30 Nov 2024", Status: StatusCompletado},
		{Title: "Optimizar carga de página", Date: "Fecha límite", Status: StatusEnCurso},
		{Title: "Pruebas Cross-Browser", Date: "4 Dic 2024", Status: StatusPlanificado},
	}
}

func Team() []Member {
	return []Member{
		{Name: "Alexandra Deff", Initials: "AD", Task: "Github Project Repository", Status: "Working on"},
		{Name: "Edwin Adenike", Initials: "EA", Task: "Integrate User Authentication System", Status: "Working on", Progress: "In Progress"},
		{Name: "Isaac Oluwatemilorun", Initials: "IO", Task: "Develop Search and Filter Functionality", Status: "Working on", Progress: "Pending"},
		{Name: "David Oshodi", Initials: "DO", Task: "Responsive Layout for Homepage", Status: "Working on", Progress: "In Progress"},
	}
}

func Reminders() []Reminder {
	return []Reminder{
		{Title: "Reunión con Arc Company", Time: "02:00 pm - 04:00 pm"},
	}
}

func Activity() []DayActivity {
	return []DayActivity{
		{Day: "L", Value: 20},
		{Day: "M", Value: 80},
		{Day: "X", Value: 60},
		{Day: "J", Value: 100},
		{Day: "V", Value: 70},
		{Day: "S", Value: 30},
		{Day: "D", Value: 25},
	}
}
