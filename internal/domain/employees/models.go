package employees

type Employee struct {
	ID         int64  `json:"id"`
	Name       string `json:"employeeName"`
	Department string `json:"department"`
	Active     bool   `json:"isActive"`
	CreatedAt  string `json:"createdAt"`
}

// Departments are the choices offered when adding an employee.
var Departments = []string{"Fabric", "Merchant", "Sampling", "Cutting", "Finishing", "Dispatch", "Admin", "Sales", "Accounts"}

var seedEmployees = []Employee{
	{Name: "Irfan Deshwali", Department: "Fabric"},
	{Name: "Ajay", Department: "Fabric"},
	{Name: "Monika", Department: "Merchant"},
	{Name: "Jyoti", Department: "Sampling"},
	{Name: "Deepak", Department: "Cutting"},
}

const maxNameLength = 120
