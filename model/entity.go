package model

import "time"

// The types below are transfer objects decoded from backend responses. They
// are held for the lifetime of one screen or request and then discarded.

// Employee is a staff member record.
type Employee struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Department  string     `json:"department,omitempty"`
	Position    string     `json:"position,omitempty"`
	StoreID     int64      `json:"storeId,omitempty"`
	Active      bool       `json:"active"`
}

// Account is a sign-in account bound to an employee.
type Account struct {
	ID         int64    `json:"id"`
	Username   string   `json:"username"`
	EmployeeID int64    `json:"employeeId,omitempty"`
	Roles      []string `json:"roles"`
	Locked     bool     `json:"locked"`
}

// Role groups permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is a single grantable permission string.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Customer is a buyer.
type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Points  int    `json:"points"`
}

// Supplier delivers stock.
type Supplier struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contactName,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Contract is an employment contract.
type Contract struct {
	ID         int64      `json:"id"`
	EmployeeID int64      `json:"employeeId"`
	Type       string     `json:"type"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	BaseSalary float64    `json:"baseSalary"`
	Status     string     `json:"status"`
}

// Payroll is one monthly salary statement.
type Payroll struct {
	ID          int64   `json:"id"`
	EmployeeID  int64   `json:"employeeId"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	WorkingDays float64 `json:"workingDays"`
	BaseSalary  float64 `json:"baseSalary"`
	Allowance   float64 `json:"allowance"`
	Deduction   float64 `json:"deduction"`
	NetSalary   float64 `json:"netSalary"`
	Paid        bool    `json:"paid"`
}

// Attendance is one check-in/check-out record.
type Attendance struct {
	ID         int64      `json:"id"`
	EmployeeID int64      `json:"employeeId"`
	Date       time.Time  `json:"date"`
	CheckIn    *time.Time `json:"checkIn,omitempty"`
	CheckOut   *time.Time `json:"checkOut,omitempty"`
	Status     string     `json:"status"`
}

// SaleStaff links an employee to the store counter they sell at.
type SaleStaff struct {
	ID         int64   `json:"id"`
	EmployeeID int64   `json:"employeeId"`
	StoreID    int64   `json:"storeId"`
	Target     float64 `json:"target"`
	Achieved   float64 `json:"achieved"`
}

// Store is a physical outlet.
type Store struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Product is a sellable item.
type Product struct {
	ID         int64   `json:"id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	SupplierID int64   `json:"supplierId,omitempty"`
}

// Order is a sales order.
type Order struct {
	ID         int64         `json:"id"`
	Code       string        `json:"code"`
	CustomerID int64         `json:"customerId,omitempty"`
	StaffID    int64         `json:"staffId,omitempty"`
	StoreID    int64         `json:"storeId,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Total      float64       `json:"total"`
	Status     string        `json:"status"`
	Details    []OrderDetail `json:"details,omitempty"`
}

// OrderDetail is one line of an order.
type OrderDetail struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"orderId"`
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Amount    float64 `json:"amount"`
}

// WarehouseStatistic summarises stock held per product.
type WarehouseStatistic struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Imported    int     `json:"imported"`
	Exported    int     `json:"exported"`
	InStock     int     `json:"inStock"`
	StockValue  float64 `json:"stockValue"`
}

// StockHistory is one stock movement.
type StockHistory struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

// DashboardMetrics are the headline figures on the dashboard.
type DashboardMetrics struct {
	Revenue        float64 `json:"revenue"`
	Orders         int     `json:"orders"`
	Customers      int     `json:"customers"`
	Employees      int     `json:"employees"`
	LowStockAlerts int     `json:"lowStockAlerts"`
}

// ChartPoint is one sample of a dashboard time series.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}
