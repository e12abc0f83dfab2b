package sectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Airport struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type AirportInfo struct {
	AirportCodes map[string]Airport `json:"airport_codes"`
}

type AirportOperations struct {
	AnnualOperations     float64 `json:"annual_operations"`
	NarrowBodyPercentage float64 `json:"narrow_body_percentage"`
	WideBodyPercentage   float64 `json:"wide_body_percentage"`
	RegionalPercentage   float64 `json:"regional_percentage"`
}

type AviationEmissions struct {
	AirportOperations map[string]AirportOperations `json:"airport_operations"`
	AircraftEmissions struct {
		LandingTakeoffCycle struct {
			NarrowBodyKgCO2  float64 `json:"narrow_body_kg_co2"`
			WideBodyKgCO2    float64 `json:"wide_body_kg_co2"`
			RegionalJetKgCO2 float64 `json:"regional_jet_kg_co2"`
		} `json:"landing_takeoff_cycle"`
	} `json:"aircraft_emissions"`
}

type Facility struct {
	Name     string    `json:"name"`
	Location *Location `json:"location,omitempty"`
}

type EnergySources struct {
	NYCPowerGrid struct {
		AverageDemandMW float64 `json:"average_demand_mw"`
	} `json:"nyc_power_grid"`
	EmissionsFactors struct {
		GridAverageKgCO2PerMWh float64 `json:"grid_average_kg_co2_per_mwh"`
	} `json:"emissions_factors"`
	MajorSubstations []Facility `json:"major_substations"`
}

type FacilitiesInfo struct {
	PowerPlants     []Facility `json:"power_plants"`
	WasteFacilities []Facility `json:"waste_facilities"`
	Manufacturing   []Facility `json:"manufacturing"`
}

type WasteManagement struct {
	WasteGeneration struct {
		AnnualTons struct {
			Total float64 `json:"total"`
		} `json:"annual_tons"`
	} `json:"waste_generation"`
	DisposalMethods struct {
		LandfillPercentage float64 `json:"landfill_percentage"`
	} `json:"disposal_methods"`
	Emissions struct {
		LandfillMethaneTonsPerTonWaste float64 `json:"landfill_methane_tons_co2e_per_ton_waste"`
	} `json:"emissions"`
}

type PortInfo struct {
	Facilities map[string]Facility `json:"facilities"`
}

type VehicleRegistrations struct {
	NYCVehicleRegistrations struct {
		TotalVehicles float64 `json:"total_vehicles"`
		ByFuelType    struct {
			Gasoline float64 `json:"gasoline"`
			Diesel   float64 `json:"diesel"`
			Hybrid   float64 `json:"hybrid"`
			Electric float64 `json:"electric"`
		} `json:"by_fuel_type"`
	} `json:"nyc_vehicle_registrations"`
	TaxiFleet struct {
		YellowCabs        float64 `json:"yellow_cabs"`
		ForHireVehicles   float64 `json:"for_hire_vehicles"`
		AverageDailyMiles float64 `json:"average_daily_miles"`
	} `json:"taxi_fleet"`
	BusFleet struct {
		MTABuses                float64 `json:"mta_buses"`
		AverageDailyMilesPerBus float64 `json:"average_daily_miles_per_bus"`
	} `json:"bus_fleet"`
}

// Reference is the sector reference data. Fields missing from the files keep
// their built-in values.
type Reference struct {
	Airports  AirportInfo
	Aviation  AviationEmissions
	Energy    EnergySources
	Industry  FacilitiesInfo
	Waste     WasteManagement
	Maritime  PortInfo
	Transport VehicleRegistrations

	// Loaded lists the files that were found.
	Loaded []string
}

const (
	airportFile  = "aviation/airport_info.json"
	energyFile   = "energy/energy_sources.json"
	industryFile = "industry/facilities_info.json"
	maritimeFile = "maritime/port_info.json"
)

// DefaultReference returns the built-in values used when no reference files
// are available.
func DefaultReference() *Reference {
	r := &Reference{}
	r.Airports.AirportCodes = map[string]Airport{
		"JFK":       {Name: "John F. Kennedy International", Lat: 40.6413, Lon: -73.7781},
		"LaGuardia": {Name: "LaGuardia", Lat: 40.7769, Lon: -73.8740},
	}
	r.Aviation.AirportOperations = map[string]AirportOperations{
		"JFK":       {AnnualOperations: 455000, NarrowBodyPercentage: 0.55, WideBodyPercentage: 0.40, RegionalPercentage: 0.05},
		"LaGuardia": {AnnualOperations: 375000, NarrowBodyPercentage: 0.75, WideBodyPercentage: 0.05, RegionalPercentage: 0.20},
	}
	lto := &r.Aviation.AircraftEmissions.LandingTakeoffCycle
	lto.NarrowBodyKgCO2 = 850
	lto.WideBodyKgCO2 = 2500
	lto.RegionalJetKgCO2 = 450

	r.Energy.NYCPowerGrid.AverageDemandMW = 7000
	r.Energy.EmissionsFactors.GridAverageKgCO2PerMWh = 350

	r.Waste.WasteGeneration.AnnualTons.Total = 14000000
	r.Waste.DisposalMethods.LandfillPercentage = 0.65
	r.Waste.Emissions.LandfillMethaneTonsPerTonWaste = 0.5

	v := &r.Transport
	v.NYCVehicleRegistrations.TotalVehicles = 2100000
	v.NYCVehicleRegistrations.ByFuelType.Gasoline = 1600000
	v.NYCVehicleRegistrations.ByFuelType.Diesel = 300000
	v.NYCVehicleRegistrations.ByFuelType.Hybrid = 150000
	v.NYCVehicleRegistrations.ByFuelType.Electric = 40000
	v.TaxiFleet.YellowCabs = 13500
	v.TaxiFleet.ForHireVehicles = 80000
	v.TaxiFleet.AverageDailyMiles = 180
	v.BusFleet.MTABuses = 5800
	v.BusFleet.AverageDailyMilesPerBus = 150
	return r
}

// LoadReference reads the reference files under dir on top of the defaults.
// Missing files are skipped; malformed ones are logged and skipped.
func LoadReference(dir string, logger *zap.Logger) *Reference {
	r := DefaultReference()
	files := []struct {
		name   string
		target any
	}{
		{airportFile, &r.Airports},
		{"aviation/emissions_factors.json", &r.Aviation},
		{energyFile, &r.Energy},
		{industryFile, &r.Industry},
		{"industry/waste_management.json", &r.Waste},
		{maritimeFile, &r.Maritime},
		{"transport/vehicle_registrations.json", &r.Transport},
	}
	for _, f := range files {
		err := overlay(filepath.Join(dir, f.name), f.target)
		switch {
		case err == nil:
			r.Loaded = append(r.Loaded, f.name)
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("reference file not found, using defaults", zap.String("file", f.name))
		default:
			logger.Warn("failed to load reference file", zap.String("file", f.name), zap.Error(err))
		}
	}
	logger.Info("sector reference data loaded", zap.Strings("files", r.Loaded))
	return r
}

// overlay decodes the file into target without clearing fields the file
// does not mention.
func overlay(path string, target any) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	raw, err := data.JsonReadSharedLock[json.RawMessage](path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(*raw, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
