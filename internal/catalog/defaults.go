package catalog

import "github.com/talgya/gridworks/internal/world"

// Resource keys of the built-in catalog.
const (
	Coal   ResourceKey = "Coal"
	Fe     ResourceKey = "Fe"
	Cu     ResourceKey = "Cu"
	Stone  ResourceKey = "Stone"
	Oil    ResourceKey = "Oil"
	Sand   ResourceKey = "Sand"
	U      ResourceKey = "U"
	Wheat  ResourceKey = "Wheat"
	Cotton ResourceKey = "Cotton"
	Wood   ResourceKey = "Wood"

	Iron     ResourceKey = "Iron"
	Copper   ResourceKey = "Copper"
	Glass    ResourceKey = "Glass"
	Petrol   ResourceKey = "Petrol"
	Bread    ResourceKey = "Bread"
	Fabric   ResourceKey = "Fabric"
	Souvenir ResourceKey = "Souvenir"
	Steel    ResourceKey = "Steel"
	Wire     ResourceKey = "Wire"
	Plastic  ResourceKey = "Plastic"
	Alloy    ResourceKey = "Alloy"
	Circuit  ResourceKey = "Circuit"
	Computer ResourceKey = "Computer"
	Crypto   ResourceKey = "Crypto"
)

// Building keys of the built-in catalog.
const (
	CoalMine        BuildingKey = "CoalMine"
	IronMine        BuildingKey = "IronMine"
	CopperMine      BuildingKey = "CopperMine"
	Quarry          BuildingKey = "Quarry"
	OilWell         BuildingKey = "OilWell"
	SandPit         BuildingKey = "SandPit"
	UraniumMine     BuildingKey = "UraniumMine"
	Farm            BuildingKey = "Farm"
	CottonFarm      BuildingKey = "CottonFarm"
	LumberCamp      BuildingKey = "LumberCamp"
	CoalPowerPlant  BuildingKey = "CoalPowerPlant"
	NuclearPlant    BuildingKey = "NuclearPlant"
	SolarPanel      BuildingKey = "SolarPanel"
	WindTurbine     BuildingKey = "WindTurbine"
	PowerBank       BuildingKey = "PowerBank"
	IronSmelter     BuildingKey = "IronSmelter"
	CopperSmelter   BuildingKey = "CopperSmelter"
	SteelMill       BuildingKey = "SteelMill"
	GlassWorks      BuildingKey = "GlassWorks"
	WireMill        BuildingKey = "WireMill"
	Refinery        BuildingKey = "Refinery"
	TextileMill     BuildingKey = "TextileMill"
	Bakery          BuildingKey = "Bakery"
	AlloyFoundry    BuildingKey = "AlloyFoundry"
	CircuitFactory  BuildingKey = "CircuitFactory"
	ComputerFactory BuildingKey = "ComputerFactory"
	CryptoMiner     BuildingKey = "CryptoMiner"
	ResourceBooster BuildingKey = "ResourceBooster"
	IndustryZone    BuildingKey = "IndustryZone"
	Warehouse       BuildingKey = "Warehouse"
	Monument        BuildingKey = "Monument"
)

// Industry tags used by industry zones.
const (
	IndustryHeavy = "heavy"
	IndustryTech  = "tech"
	IndustryAgri  = "agri"
)

// Default returns a fresh copy of the built-in catalog.
func Default() *Catalog {
	c := New(Petrol)

	raw := func(k ResourceKey, kind ResourceKind, price, fuel float64) {
		c.AddResource(&ResourceDefinition{Key: k, Kind: kind, Tier: 1, FuelCost: fuel, RawPrice: price})
	}
	made := func(k ResourceKey, tier int, fuel float64) {
		c.AddResource(&ResourceDefinition{Key: k, Kind: ResourceManufactured, Tier: tier, FuelCost: fuel})
	}

	raw(Coal, ResourceDeposit, 2, 0.010)
	raw(Fe, ResourceDeposit, 3, 0.012)
	raw(Cu, ResourceDeposit, 3, 0.012)
	raw(Stone, ResourceDeposit, 1, 0.015)
	raw(Oil, ResourceDeposit, 4, 0.010)
	raw(Sand, ResourceDeposit, 1, 0.012)
	raw(U, ResourceDeposit, 25, 0.005)
	raw(Wheat, ResourceCrop, 1, 0.008)
	raw(Cotton, ResourceCrop, 2, 0.006)
	raw(Wood, ResourceCrop, 1, 0.010)

	made(Iron, 2, 0.015)
	made(Copper, 2, 0.015)
	made(Glass, 2, 0.012)
	made(Petrol, 2, 0.008)
	made(Bread, 2, 0.006)
	made(Fabric, 2, 0.006)
	made(Souvenir, 2, 0.004)
	made(Steel, 3, 0.020)
	made(Wire, 3, 0.010)
	made(Plastic, 3, 0.008)
	made(Alloy, 3, 0.018)
	made(Circuit, 4, 0.005)
	made(Computer, 5, 0.006)
	c.AddResource(&ResourceDefinition{
		Key: Crypto, Kind: ResourceSpeculative, Tier: 5, FuelCost: 0,
		Price: func(known map[ResourceKey]float64) float64 {
			return 40 + 0.5*known[Computer]
		},
	})

	mine := func(k BuildingKey, dep ResourceKey, cost float64) {
		c.AddBuilding(&BuildingDefinition{
			Key: k, Kind: KindProducer, Industry: IndustryHeavy,
			Outputs:  Amounts{dep: 1},
			Power:    -1,
			CanPlace: OnDeposit(dep),
			BaseCost: cost,
		})
	}
	mine(CoalMine, Coal, 20)
	mine(IronMine, Fe, 25)
	mine(CopperMine, Cu, 25)
	mine(Quarry, Stone, 15)
	mine(SandPit, Sand, 15)
	c.AddBuilding(&BuildingDefinition{
		Key: OilWell, Kind: KindProducer, Industry: IndustryHeavy,
		Outputs: Amounts{Oil: 1}, Power: -2,
		CanPlace: OnDeposit(Oil), BaseCost: 60, UnlockCost: 200,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: UraniumMine, Kind: KindProducer, Industry: IndustryHeavy,
		Outputs: Amounts{U: 0.1}, Power: -4,
		CanPlace: OnDeposit(U), BaseCost: 400, UnlockCost: 2000,
	})

	crop := func(k BuildingKey, res ResourceKey, cost float64, terrain world.Terrain) {
		c.AddBuilding(&BuildingDefinition{
			Key: k, Kind: KindProducer, Industry: IndustryAgri,
			Outputs:  Amounts{res: 1},
			CanPlace: OnTerrain(terrain),
			BaseCost: cost,
		})
	}
	crop(Farm, Wheat, 10, world.TerrainPlains)
	crop(CottonFarm, Cotton, 15, world.TerrainPlains)
	crop(LumberCamp, Wood, 12, world.TerrainForest)

	c.AddBuilding(&BuildingDefinition{
		Key: CoalPowerPlant, Kind: KindGenerator, Generator: GeneratorFuel,
		Inputs: Amounts{Coal: 1}, Power: 15, BaseCost: 50,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: NuclearPlant, Kind: KindGenerator, Generator: GeneratorFuel,
		Inputs: Amounts{U: 0.02}, Power: 120, BaseCost: 2500, UnlockCost: 5000,
		TickLength: 5,
		Available: func(ctx AvailabilityContext) bool {
			return ctx.Unlocked && ctx.Profile != "archipelago"
		},
	})
	c.AddBuilding(&BuildingDefinition{
		Key: SolarPanel, Kind: KindGenerator, Generator: GeneratorSolar,
		Power: 4, BaseCost: 80, UnlockCost: 300,
		CanPlace: func(t *world.Tile) bool { return t.Terrain == world.TerrainDesert || t.Terrain == world.TerrainPlains },
	})
	c.AddBuilding(&BuildingDefinition{
		Key: WindTurbine, Kind: KindGenerator, Generator: GeneratorWind,
		Power: 6, BaseCost: 90, UnlockCost: 300,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: PowerBank, Kind: KindBank,
		Capacity: 500, ChargeRate: 25, BaseCost: 120, UnlockCost: 400,
		IgnorePricing: true, IgnoreAdjacency: true,
	})

	c.AddBuilding(&BuildingDefinition{
		Key: IronSmelter, Kind: KindProducer, Industry: IndustryHeavy,
		Inputs: Amounts{Fe: 2, Coal: 1}, Outputs: Amounts{Iron: 1}, Power: -5, BaseCost: 60,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: CopperSmelter, Kind: KindProducer, Industry: IndustryHeavy,
		Inputs: Amounts{Cu: 2, Coal: 1}, Outputs: Amounts{Copper: 1}, Power: -5, BaseCost: 60,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: SteelMill, Kind: KindProducer, Industry: IndustryHeavy,
		Inputs: Amounts{Iron: 2, Coal: 1}, Outputs: Amounts{Steel: 1}, Power: -8, BaseCost: 150, UnlockCost: 500,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: GlassWorks, Kind: KindProducer, Industry: IndustryHeavy,
		Inputs: Amounts{Sand: 2}, Outputs: Amounts{Glass: 1}, Power: -4, BaseCost: 70,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: WireMill, Kind: KindProducer, Industry: IndustryTech,
		Inputs: Amounts{Copper: 1}, Outputs: Amounts{Wire: 2}, Power: -3, BaseCost: 90,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: Refinery, Kind: KindProducer, Industry: IndustryHeavy,
		Recipes: []Recipe{
			{Key: "petrol", Inputs: Amounts{Oil: 2}, Outputs: Amounts{Petrol: 1}, Power: -6, MinLevel: 1},
			{Key: "plastic", Inputs: Amounts{Oil: 1}, Outputs: Amounts{Plastic: 1}, Power: -8, MinLevel: 5},
		},
		DefaultRecipe: "petrol",
		CanPlace:      func(t *world.Tile) bool { return t.Deposit == "" },
		BaseCost:      200, UnlockCost: 400,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: TextileMill, Kind: KindProducer, Industry: IndustryAgri,
		Inputs: Amounts{Cotton: 2}, Outputs: Amounts{Fabric: 1}, Power: -2, BaseCost: 40,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: Bakery, Kind: KindProducer, Industry: IndustryAgri,
		Inputs: Amounts{Wheat: 2}, Outputs: Amounts{Bread: 1}, Power: -1, BaseCost: 30,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: AlloyFoundry, Kind: KindProducer, Industry: IndustryHeavy,
		Dynamic: func(mix float64) IO {
			mix = clamp01(mix)
			in := Amounts{}
			if mix < 1 {
				in[Iron] = 2 * (1 - mix)
			}
			if mix > 0 {
				in[Copper] = 2 * mix
			}
			return IO{Inputs: in, Outputs: Amounts{Alloy: 1}, Power: -6}
		},
		BaseCost: 180, UnlockCost: 600,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: CircuitFactory, Kind: KindProducer, Industry: IndustryTech,
		Inputs: Amounts{Wire: 2, Plastic: 1}, Outputs: Amounts{Circuit: 1}, Power: -10,
		BaseCost: 400, UnlockCost: 1500,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: ComputerFactory, Kind: KindProducer, Industry: IndustryTech,
		Inputs: Amounts{Circuit: 2, Steel: 1, Glass: 1}, Outputs: Amounts{Computer: 1}, Power: -20,
		BaseCost: 1200, UnlockCost: 4000, TickLength: 2,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: CryptoMiner, Kind: KindCapacitor, Industry: IndustryTech,
		Outputs: Amounts{Crypto: 0.05}, Power: -30, Capacity: 300,
		BaseCost: 800, UnlockCost: 2500, IgnorePricing: true,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: ResourceBooster, Kind: KindBooster,
		Inputs: Amounts{Circuit: 0.01}, Power: -5,
		BoostAmount: 0.25, BoostRadius: 1,
		BaseCost: 500, UnlockCost: 2000,
		IgnorePricing: true, IgnoreAdjacency: true,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: IndustryZone, Kind: KindZone, Industry: IndustryHeavy,
		BoostAmount: 0.05, BoostRadius: 2, GlobalBonus: 0.01,
		BaseCost: 300, UnlockCost: 1000,
		IgnorePricing: true, IgnoreAdjacency: true,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: Warehouse, Kind: KindWarehouse,
		Capacity: 1000, RouteRate: 5, BaseCost: 100,
		IgnorePricing: true, IgnoreAdjacency: true,
	})
	c.AddBuilding(&BuildingDefinition{
		Key: Monument, Kind: KindMonument,
		Outputs: Amounts{Souvenir: 0.5}, Power: -2,
		BaseCost: 250, UnlockCost: 750,
	})

	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
