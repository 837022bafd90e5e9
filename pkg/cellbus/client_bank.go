package cellbus

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Register map of the cell-bank AFE.
//
//	0..1      magic "CBUS"
//	4..19     manufacturer (ascii, zero padded)
//	20..35    model
//	36..43    serial
//	50        cell count
//	100+i*4   cell i: voltage mV, temperature 0.1 C, soc %, soh %
const (
	regMagic        = 0
	regManufacturer = 4
	regModel        = 20
	regSerial       = 36
	regCellCount    = 50
	regCellBase     = 100
	regCellStride   = 4

	bankMagic = "CBUS"
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func (reader ModbusClient) readString(address uint16, size uint16) (string, error) {
	bytes, err := reader.readRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	f := slices.Index(bytes, 0x00)
	if f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func (reader ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	return reader.client.ReadRegister(addr, regType)
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", reader.instrument)()
	return reader.client.ReadRegisters(addr, quantity, regType)
}

func (reader ModbusClient) readRawBytes(addr uint16, quantity uint16, regType modbus.RegType) ([]byte, error) {
	defer RecordTimer("ReadRawBytes", reader.instrument)()
	return reader.client.ReadRawBytes(addr, quantity, regType)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug(fmt.Sprintf("modbus [%s]: %d millis", fnName, readTime.Milliseconds()))
		},
	}
}

type CellBankModbusReader struct {
	ModbusClient
}

func CreateCellBankModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (CellBankReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "cellBank")).With(zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	reader := CellBankModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
	}
	return &reader, nil
}

func (reader *CellBankModbusReader) Open() error {
	return reader.client.Open()
}

func (reader CellBankModbusReader) Close() error {
	return reader.client.Close()
}

func (reader CellBankModbusReader) Validate() error {
	str, err := reader.readString(regMagic, 4)
	if err != nil {
		return err
	}
	if str != bankMagic {
		return errors.New("could not find a cell-bank AFE at the configured address")
	}
	return nil
}

func (reader CellBankModbusReader) GetInfo() (*CellBankInfo, error) {
	manufacturer, err := reader.readString(regManufacturer, 32)
	if err != nil {
		return nil, err
	}
	model, err := reader.readString(regModel, 32)
	if err != nil {
		return nil, err
	}
	serial, err := reader.readString(regSerial, 16)
	if err != nil {
		return nil, err
	}

	return &CellBankInfo{
		Manufacturer: manufacturer,
		Model:        model,
		Serial:       serial,
	}, nil
}

func (reader CellBankModbusReader) GetCellCount() (uint16, error) {
	return reader.readRegister(regCellCount, modbus.HOLDING_REGISTER)
}

func (reader CellBankModbusReader) ReadCell(index uint16) (*CellMeasure, error) {
	regs, err := reader.readRegisters(regCellBase+index*regCellStride, regCellStride, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return decodeCellRegisters(index, regs)
}

func (reader CellBankModbusReader) ReadAllCells() ([]CellMeasure, error) {
	count, err := reader.GetCellCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("cell-bank AFE reports zero cells")
	}
	regs, err := reader.readRegisters(regCellBase, count*regCellStride, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	measures := make([]CellMeasure, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := decodeCellRegisters(i, regs[i*regCellStride:(i+1)*regCellStride])
		if err != nil {
			return nil, err
		}
		measures = append(measures, *m)
	}
	return measures, nil
}

func decodeCellRegisters(index uint16, regs []uint16) (*CellMeasure, error) {
	if len(regs) < regCellStride {
		return nil, errors.New("short cell register block")
	}
	return &CellMeasure{
		Index:            index,
		VoltageMilliV:    regs[0],
		TemperatureDeciC: int16(regs[1]),
		SOC:              uint8(regs[2]),
		SOH:              uint8(regs[3]),
	}, nil
}
