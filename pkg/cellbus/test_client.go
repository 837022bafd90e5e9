package cellbus

func CreateTestCellBankReader(cellCount uint16) (CellBankReader, error) {
	return &TestCellBankReader{CellCount: cellCount}, nil
}

// TestCellBankReader serves synthetic readings without a Modbus endpoint.
type TestCellBankReader struct {
	CellCount uint16
	ReadErr   error
	Reads     int
}

func (reader *TestCellBankReader) Open() error {
	return nil
}

func (reader *TestCellBankReader) Close() error {
	return nil
}

func (reader *TestCellBankReader) Validate() error {
	return nil
}

func (reader *TestCellBankReader) GetInfo() (*CellBankInfo, error) {
	return &CellBankInfo{
		Manufacturer: "Packlab",
		Model:        "CB-16S",
		Serial:       "CB16S-000042",
	}, nil
}

func (reader *TestCellBankReader) GetCellCount() (uint16, error) {
	return reader.CellCount, nil
}

func (reader *TestCellBankReader) ReadCell(index uint16) (*CellMeasure, error) {
	reader.Reads++
	if reader.ReadErr != nil {
		return nil, reader.ReadErr
	}
	return &CellMeasure{
		Index:            index,
		VoltageMilliV:    3700 + index*10,
		TemperatureDeciC: 250,
		SOC:              80,
		SOH:              98,
	}, nil
}

func (reader *TestCellBankReader) ReadAllCells() ([]CellMeasure, error) {
	reader.Reads++
	if reader.ReadErr != nil {
		return nil, reader.ReadErr
	}
	measures := make([]CellMeasure, 0, reader.CellCount)
	for i := uint16(0); i < reader.CellCount; i++ {
		measures = append(measures, CellMeasure{
			Index:            i,
			VoltageMilliV:    3700 + i*10,
			TemperatureDeciC: 250,
			SOC:              80,
			SOH:              98,
		})
	}
	return measures, nil
}
